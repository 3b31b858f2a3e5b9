// Package plugins hosts the detector rules. Each detector is independent,
// consumes the IR plus dataflow facts for a single function, and is evaluated
// exactly once per function.
package plugins

import (
	"context"

	"github.com/xab-mack/dosguard/internal/analysis"
	"github.com/xab-mack/dosguard/internal/ir"
	"github.com/xab-mack/dosguard/internal/model"
)

// FunctionContext is everything a detector may look at for one function. The
// storage table is a read-only snapshot shared across functions.
type FunctionContext struct {
	File     string
	Contract *ir.Contract
	Function *ir.Function
	Facts    *analysis.FunctionFacts
}

type Detector interface {
	Meta() model.RuleMeta
	Analyze(ctx context.Context, fctx *FunctionContext) ([]model.Finding, error)
}

type Registry struct{ detectors []Detector }

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(d Detector) { r.detectors = append(r.detectors, d) }

func (r *Registry) RegisterBuiltin() {
	r.Register(&uncheckedExternalDependency{})
	r.Register(&gasGriefing{})
	r.Register(&unboundedLoop{})
}

func (r *Registry) Detectors() []Detector { return r.detectors }

// Run evaluates every detector against one function. Detector errors drop
// that detector's findings only.
func (r *Registry) Run(ctx context.Context, fctx *FunctionContext) []model.Finding {
	var out []model.Finding
	for _, d := range r.detectors {
		if ctx.Err() != nil {
			return out
		}
		fs, err := d.Analyze(ctx, fctx)
		if err != nil {
			continue
		}
		out = append(out, fs...)
	}
	return out
}
