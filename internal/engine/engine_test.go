package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/dosguard/internal/ast"
	"github.com/xab-mack/dosguard/internal/config"
	"github.com/xab-mack/dosguard/internal/model"
	"github.com/xab-mack/dosguard/internal/solidity"
)

type stubParser struct {
	unit *ast.SourceUnit
	err  error
}

func (p *stubParser) Parse(path string, _ []byte) (*ast.SourceUnit, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.unit, nil
}

func ident(n string) *ast.Ident { return &ast.Ident{Name: n} }

// payerContract carries one unchecked value call followed by a storage write,
// which trips both the stranded-state and the gas-exposure detectors.
func payerContract() *ast.Contract {
	return &ast.Contract{
		Name: "Payer",
		StateVars: []*ast.StateVar{
			{Name: "paid", Type: ast.TypeName{Kind: ast.TypeMapping}},
		},
		Functions: []*ast.Function{{
			Name: "pay", Visibility: "public", Line: 4,
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.VarDecl{
					Names: []string{"ok", ""},
					Value: &ast.Call{
						Callee:  &ast.Member{X: ident("to"), Sel: "call"},
						Args:    []ast.Expr{&ast.Literal{Kind: "string", Value: ""}},
						Options: map[string]ast.Expr{"value": ident("amount")},
					},
					Line: 5,
				},
				&ast.ExprStmt{X: &ast.Assign{
					Op:  "=",
					LHS: &ast.Index{X: ident("paid"), I: ident("to")},
					RHS: &ast.Literal{Kind: "bool", Value: "true"},
				}, Line: 6},
			}},
		}},
	}
}

// writeSol drops a placeholder source file so discovery and the inline
// suppression scanner have something to read; the stub parser ignores it.
func writeSol(t *testing.T, lines ...string) (dir, file string) {
	t.Helper()
	dir = t.TempDir()
	if len(lines) == 0 {
		lines = []string{"contract Payer {}"}
	}
	file = filepath.Join(dir, "payer.sol")
	require.NoError(t, os.WriteFile(file, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return dir, file
}

func scanWith(t *testing.T, cfg config.Config, parser solidity.Parser, req model.ScanRequest) *model.ScanResult {
	t.Helper()
	res, err := NewWithParser(cfg, parser).Scan(context.Background(), req)
	require.NoError(t, err)
	return res
}

func ruleIDs(findings []model.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.RuleID
	}
	return out
}

func TestScanReportsFindings(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir})

	assert.ElementsMatch(t, []string{"DOS-UNCHECKED-CALL", "DOS-GAS-GRIEFING"}, ruleIDs(res.Findings))
	assert.Equal(t, 1, res.Summary[model.SeverityHigh])
	assert.Equal(t, 1, res.Summary[model.SeverityMedium])
	assert.Empty(t, res.Diagnostics)
	// High severity sorts first.
	assert.Equal(t, "DOS-UNCHECKED-CALL", res.Findings[0].RuleID)
}

func TestScanSingleFile(t *testing.T) {
	_, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: file})
	assert.Len(t, res.Findings, 2)
}

func TestScanMissingPath(t *testing.T) {
	eng := NewWithParser(config.Default(), &stubParser{})
	_, err := eng.Scan(context.Background(), model.ScanRequest{Path: filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}

func TestScanSeverityThreshold(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	cfg := config.Default()
	cfg.SeverityThreshold = "high"
	res := scanWith(t, cfg, parser, model.ScanRequest{Path: dir})

	assert.Equal(t, []string{"DOS-UNCHECKED-CALL"}, ruleIDs(res.Findings))
}

func TestScanRulesAllowlist(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	cfg := config.Default()
	cfg.Rules = []string{"DOS-GAS-GRIEFING"}
	res := scanWith(t, cfg, parser, model.ScanRequest{Path: dir})

	assert.Equal(t, []string{"DOS-GAS-GRIEFING"}, ruleIDs(res.Findings))
}

func TestScanIgnoreRule(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	cfg := config.Default()
	cfg.Ignore = []config.IgnoreRule{{Rule: "dos-unchecked-call", Reason: "accepted"}}
	res := scanWith(t, cfg, parser, model.ScanRequest{Path: dir})

	assert.Equal(t, []string{"DOS-GAS-GRIEFING"}, ruleIDs(res.Findings),
		"ignore rules match case-insensitively")
}

func TestScanInlineSuppression(t *testing.T) {
	// The finding sits on line 5; the marker within the three lines above it
	// suppresses only the named rule.
	dir, file := writeSol(t,
		"contract Payer {",
		"  mapping(address => bool) paid;",
		"  // dosguard:ignore DOS-UNCHECKED-CALL reviewed, pull payment planned",
		"  function pay(address to, uint amount) public {",
		"    (bool ok, ) = to.call{value: amount}(\"\");",
		"    paid[to] = true;",
		"  }",
		"}",
	)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir})
	assert.Equal(t, []string{"DOS-GAS-GRIEFING"}, ruleIDs(res.Findings))
}

func TestScanParseErrorBecomesDiagnostic(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{err: &solidity.ParseError{File: file, Line: 2, Msg: "expected ';'"}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir})

	assert.Empty(t, res.Findings)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, model.DiagParseError, d.Kind)
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, "expected ';'", d.Message)
}

func TestScanMalformedFunctionBecomesDiagnostic(t *testing.T) {
	dir, file := writeSol(t)
	c := payerContract()
	c.Functions = append(c.Functions, &ast.Function{
		Name: "broken", Visibility: "public", Line: 9,
		Body: &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{X: nil, Line: 10}}},
	})
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{c}}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir})

	assert.Len(t, res.Findings, 2, "the healthy function still analyzes")
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, model.DiagMalformedAST, d.Kind)
	assert.Equal(t, "Payer", d.Contract)
	assert.Equal(t, "broken", d.Function)
}

func TestScanBaselineSuppressesKnownFindings(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	first := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir})
	require.Len(t, first.Findings, 2)

	baselinePath := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, WriteBaseline(baselinePath, first.Findings))

	second := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir, BaselinePath: baselinePath})
	assert.Empty(t, second.Findings)
}

func TestLoadBaselineAcceptsBothShapes(t *testing.T) {
	dir := t.TempDir()

	arrPath := filepath.Join(dir, "arr.json")
	require.NoError(t, os.WriteFile(arrPath, []byte(`["abc","def"]`), 0o644))
	fp, err := LoadBaseline(arrPath)
	require.NoError(t, err)
	assert.True(t, fp["abc"])

	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"generatedAt":"2026-01-05T00:00:00Z","fingerprints":{"xyz":true}}`), 0o644))
	fp, err = LoadBaseline(docPath)
	require.NoError(t, err)
	assert.True(t, fp["xyz"])
}

func TestFilterByBaseline(t *testing.T) {
	findings := []model.Finding{
		{RuleID: "A", Fingerprint: "keep"},
		{RuleID: "B", Fingerprint: "drop"},
	}
	out := FilterByBaseline(findings, map[string]bool{"drop": true})
	require.Len(t, out, 1)
	assert.Equal(t, "keep", out[0].Fingerprint)
}

func TestScanSeparatesOverloadedFunctions(t *testing.T) {
	dir, file := writeSol(t)
	c := payerContract()
	c.Functions[0].Params = []string{"address"}
	second := payerContract().Functions[0]
	second.Params = []string{"address", "uint256"}
	c.Functions = append(c.Functions, second)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{c}}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir})

	require.Len(t, res.Findings, 4, "each overload keeps its own findings")
	assert.ElementsMatch(t,
		[]string{"pay(address)", "pay(address)", "pay(address,uint256)", "pay(address,uint256)"},
		functionNames(res.Findings))
	seen := make(map[string]bool)
	for _, f := range res.Findings {
		assert.False(t, seen[f.Fingerprint], "fingerprint %s repeated", f.Fingerprint)
		seen[f.Fingerprint] = true
	}
}

func functionNames(findings []model.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Function
	}
	return out
}

func TestScanRespectsWorkersOverride(t *testing.T) {
	dir, file := writeSol(t)
	parser := &stubParser{unit: &ast.SourceUnit{Path: file, Contracts: []*ast.Contract{payerContract()}}}

	res := scanWith(t, config.Default(), parser, model.ScanRequest{Path: dir, Workers: 1})
	assert.Len(t, res.Findings, 2)
}
