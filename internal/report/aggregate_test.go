package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/dosguard/internal/model"
)

func finding(rule string, sev model.Severity, contract, fn string, locs ...model.Location) model.Finding {
	return model.Finding{
		RuleID:    rule,
		Severity:  sev,
		File:      "a.sol",
		Contract:  contract,
		Function:  fn,
		Locations: locs,
	}
}

func TestAggregateDeduplicates(t *testing.T) {
	f := finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "pay", model.Location{Block: 1, Statement: 0})
	rep := Aggregate([]model.Finding{f, f, f}, nil, nil)
	assert.Len(t, rep.Findings, 1)
}

func TestAggregateKeepsDistinctLocations(t *testing.T) {
	a := finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "pay", model.Location{Block: 1, Statement: 0})
	b := finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "pay", model.Location{Block: 2, Statement: 0})
	rep := Aggregate([]model.Finding{a, b}, nil, nil)
	assert.Len(t, rep.Findings, 2)
}

func TestAggregateLocationOrderIrrelevant(t *testing.T) {
	a := finding("DOS-UNCHECKED-CALL", model.SeverityHigh, "C", "pay",
		model.Location{Block: 1, Statement: 0}, model.Location{Block: 2, Statement: 1})
	b := finding("DOS-UNCHECKED-CALL", model.SeverityHigh, "C", "pay",
		model.Location{Block: 2, Statement: 1}, model.Location{Block: 1, Statement: 0})
	rep := Aggregate([]model.Finding{a, b}, nil, nil)
	assert.Len(t, rep.Findings, 1)
}

func TestAggregateKeepsOverloads(t *testing.T) {
	// Overloads restart block numbering, so only the signature-qualified
	// function name separates their findings.
	a := finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "pay(address)", model.Location{Block: 1, Statement: 0})
	b := finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "pay(uint256)", model.Location{Block: 1, Statement: 0})
	rep := Aggregate([]model.Finding{a, b}, nil, nil)
	assert.Len(t, rep.Findings, 2)
}

func TestAggregateOrdering(t *testing.T) {
	declOrder := map[string]int{
		OrderKey("a.sol", "C", "first"):  0,
		OrderKey("a.sol", "C", "second"): 1,
	}
	in := []model.Finding{
		finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "first", model.Location{Block: 1}),
		finding("DOS-UNBOUNDED-LOOP", model.SeverityHigh, "C", "second", model.Location{Block: 2}),
		finding("DOS-UNCHECKED-CALL", model.SeverityHigh, "C", "second", model.Location{Block: 3}),
		finding("DOS-UNCHECKED-CALL", model.SeverityHigh, "C", "first", model.Location{Block: 4}),
	}
	rep := Aggregate(in, nil, declOrder)
	require.Len(t, rep.Findings, 4)

	// High severity first; within a severity, declaration order; then rule id.
	assert.Equal(t, "first", rep.Findings[0].Function)
	assert.Equal(t, "DOS-UNCHECKED-CALL", rep.Findings[0].RuleID)
	assert.Equal(t, "second", rep.Findings[1].Function)
	assert.Equal(t, "DOS-UNBOUNDED-LOOP", rep.Findings[1].RuleID)
	assert.Equal(t, "second", rep.Findings[2].Function)
	assert.Equal(t, "DOS-UNCHECKED-CALL", rep.Findings[2].RuleID)
	assert.Equal(t, model.SeverityMedium, rep.Findings[3].Severity)
}

func TestAggregateIdempotent(t *testing.T) {
	declOrder := map[string]int{OrderKey("a.sol", "C", "pay"): 0}
	in := []model.Finding{
		finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "pay", model.Location{Block: 1}),
		finding("DOS-UNCHECKED-CALL", model.SeverityHigh, "C", "pay", model.Location{Block: 1}),
	}
	once := Aggregate(in, nil, declOrder)
	twice := Aggregate(once.Findings, nil, declOrder)
	assert.Equal(t, once.Findings, twice.Findings)
	assert.Equal(t, once.Summary, twice.Summary)
}

func TestAggregateSummaryCounts(t *testing.T) {
	in := []model.Finding{
		finding("DOS-UNCHECKED-CALL", model.SeverityHigh, "C", "a", model.Location{Block: 1}),
		finding("DOS-UNBOUNDED-LOOP", model.SeverityHigh, "C", "b", model.Location{Block: 2}),
		finding("DOS-GAS-GRIEFING", model.SeverityMedium, "C", "c", model.Location{Block: 3}),
	}
	rep := Aggregate(in, nil, nil)
	assert.Equal(t, 2, rep.Summary[model.SeverityHigh])
	assert.Equal(t, 1, rep.Summary[model.SeverityMedium])
	assert.Equal(t, 0, rep.Summary[model.SeverityLow])
}

func TestAggregateCarriesDiagnostics(t *testing.T) {
	diags := []model.Diagnostic{{Kind: model.DiagParseError, File: "bad.sol", Message: "boom"}}
	rep := Aggregate(nil, diags, nil)
	assert.Empty(t, rep.Findings)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, model.DiagParseError, rep.Diagnostics[0].Kind)
}
