// Package report turns raw detector output into the final immutable report:
// deduplicated, deterministically ordered, with per-severity counts.
package report

import (
	"encoding/json"
	"sort"

	"github.com/xab-mack/dosguard/internal/model"
	"github.com/xab-mack/dosguard/internal/plugins"
)

type Report struct {
	Findings    []model.Finding        `json:"findings"`
	Summary     map[model.Severity]int `json:"summary"`
	Diagnostics []model.Diagnostic     `json:"diagnostics,omitempty"`
}

// OrderKey identifies a function for declaration-order sorting.
func OrderKey(file, contract, function string) string {
	return file + "|" + contract + "|" + function
}

// Aggregate deduplicates findings on (rule, contract, function, location set),
// keeping the first, then orders by descending severity, function declaration
// order, and rule id. The result is append-only: callers never mutate it.
func Aggregate(findings []model.Finding, diags []model.Diagnostic, declOrder map[string]int) *Report {
	seen := make(map[string]bool, len(findings))
	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		key := f.RuleID + "|" + f.Contract + "|" + f.Function + "|" + plugins.LocString(f.Locations)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	rank := map[model.Severity]int{model.SeverityHigh: 0, model.SeverityMedium: 1, model.SeverityLow: 2}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if rank[a.Severity] != rank[b.Severity] {
			return rank[a.Severity] < rank[b.Severity]
		}
		ai := declOrder[OrderKey(a.File, a.Contract, a.Function)]
		bi := declOrder[OrderKey(b.File, b.Contract, b.Function)]
		if ai != bi {
			return ai < bi
		}
		return a.RuleID < b.RuleID
	})

	summary := map[model.Severity]int{}
	for _, f := range out {
		summary[f.Severity]++
	}
	return &Report{Findings: out, Summary: summary, Diagnostics: diags}
}

func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
