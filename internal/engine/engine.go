package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xab-mack/dosguard/internal/analysis"
	"github.com/xab-mack/dosguard/internal/ast"
	"github.com/xab-mack/dosguard/internal/classify"
	"github.com/xab-mack/dosguard/internal/config"
	"github.com/xab-mack/dosguard/internal/ir"
	"github.com/xab-mack/dosguard/internal/model"
	"github.com/xab-mack/dosguard/internal/plugins"
	"github.com/xab-mack/dosguard/internal/report"
	"github.com/xab-mack/dosguard/internal/solidity"
)

type Engine struct {
	cfg      config.Config
	parser   solidity.Parser
	registry *plugins.Registry
	trusted  classify.TrustedSet
}

func New(cfg config.Config) *Engine {
	return NewWithParser(cfg, solidity.NewSolcParser(cfg.SolcPath))
}

// NewWithParser injects an alternative parsing collaborator.
func NewWithParser(cfg config.Config, p solidity.Parser) *Engine {
	reg := plugins.NewRegistry()
	reg.RegisterBuiltin()
	return &Engine{
		cfg:      cfg,
		parser:   p,
		registry: reg,
		trusted:  classify.NewTrustedSet(cfg.TrustedAddresses),
	}
}

// Scan analyzes every contract under req.Path. A file the parser rejects or a
// function the builder cannot lower becomes a diagnostic, never a hard abort;
// only internal invariant violations (analyzer bugs) surface as errors.
func (e *Engine) Scan(ctx context.Context, req model.ScanRequest) (*model.ScanResult, error) {
	start := time.Now()
	files, err := discoverFiles(req.Path)
	if err != nil {
		return nil, err
	}

	var findings []model.Finding
	var diags []model.Diagnostic
	declOrder := make(map[string]int)
	nextDecl := 0

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			diags = append(diags, model.Diagnostic{Kind: model.DiagParseError, File: file, Message: err.Error()})
			continue
		}
		unit, err := e.parser.Parse(file, src)
		if err != nil {
			d := model.Diagnostic{Kind: model.DiagParseError, File: file, Message: err.Error()}
			if pe, ok := err.(*solidity.ParseError); ok {
				d.Line = pe.Line
				d.Message = pe.Msg
			}
			diags = append(diags, d)
			continue
		}
		for _, c := range unit.Contracts {
			fs, ds, err := e.analyzeContract(ctx, file, c, declOrder, &nextDecl, req.Workers)
			if err != nil {
				return nil, err
			}
			findings = append(findings, fs...)
			diags = append(diags, ds...)
		}
	}

	findings = filterBySeverity(findings, e.cfg)
	findings = filterByRules(findings, e.cfg)
	findings = applyIgnores(findings, e.cfg)
	if req.BaselinePath != "" {
		fingerprints, err := LoadBaseline(req.BaselinePath)
		if err != nil {
			return nil, err
		}
		findings = FilterByBaseline(findings, fingerprints)
	}

	rep := report.Aggregate(findings, diags, declOrder)
	return &model.ScanResult{
		Findings:    rep.Findings,
		Summary:     rep.Summary,
		Diagnostics: rep.Diagnostics,
		Elapsed:     time.Since(start),
	}, nil
}

// analyzeContract runs the two analysis phases for one contract: phase 1
// builds every function's CFG and the storage tables, phase 2 runs dataflow
// and detectors per function in parallel. The storage table is a read-only
// snapshot by the time phase 2 starts, so the workers share it without locks.
func (e *Engine) analyzeContract(ctx context.Context, file string, c *ast.Contract, declOrder map[string]int, nextDecl *int, workers int) ([]model.Finding, []model.Diagnostic, error) {
	irc, buildErrs := ir.BuildContract(file, c)
	var diags []model.Diagnostic
	for _, be := range buildErrs {
		diags = append(diags, model.Diagnostic{
			Kind:     model.DiagMalformedAST,
			File:     file,
			Contract: be.Contract,
			Function: be.Function,
			Line:     be.Line,
			Message:  be.Reason,
		})
	}

	classify.Contract(irc, e.trusted)

	for _, fn := range irc.Functions {
		if err := fn.Validate(); err != nil {
			// Broken IR is a bug in the builder, not in the scanned source.
			return nil, nil, err
		}
		declOrder[report.OrderKey(file, irc.Name, fn.Signature)] = *nextDecl
		*nextDecl++
	}

	if workers <= 0 {
		workers = e.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	var findings []model.Finding
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, fn := range irc.Functions {
		fn := fn
		g.Go(func() error {
			facts := analysis.Analyze(fn, irc.Storage)
			fs := e.registry.Run(gctx, &plugins.FunctionContext{
				File:     file,
				Contract: irc,
				Function: fn,
				Facts:    facts,
			})
			mu.Lock()
			findings = append(findings, fs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return findings, diags, nil
}

// discoverFiles returns the Solidity sources under root, or root itself when
// it is a single file.
func discoverFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(d.Name()) == ".sol" {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
