package model

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func ParseSeverity(s string) Severity {
	switch s {
	case string(SeverityHigh):
		return SeverityHigh
	case string(SeverityMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func SeverityGTE(a, b Severity) bool {
	order := map[Severity]int{SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3}
	return order[a] >= order[b]
}

// Mitigation is the suggested fix class attached to a finding.
type Mitigation string

const (
	MitigationWithdrawal  Mitigation = "withdrawal_pattern"
	MitigationGasCap      Mitigation = "gas_cap"
	MitigationBoundedLoop Mitigation = "bounded_loop"
)

type RuleMeta struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Tags     []string `json:"tags"`
}

// Location addresses one IR statement: basic block id plus the statement's
// index inside that block.
type Location struct {
	Block     int `json:"block"`
	Statement int `json:"statement"`
}

type Finding struct {
	RuleID      string     `json:"ruleId"`
	Severity    Severity   `json:"severity"`
	Confidence  float64    `json:"confidence"`
	File        string     `json:"file"`
	Contract    string     `json:"contract"`
	Function    string     `json:"function"`
	Line        int        `json:"line"`
	Locations   []Location `json:"locations"`
	Message     string     `json:"message"`
	Rationale   string     `json:"rationale"`
	Mitigation  Mitigation `json:"mitigation"`
	NeedsReview bool       `json:"needsReview,omitempty"`
	Fingerprint string     `json:"fingerprint"`
}

// DiagKind distinguishes the two user-facing failure classes: a file the
// external parser rejected, and a function whose AST shape the IR builder
// could not lower.
type DiagKind string

const (
	DiagParseError   DiagKind = "parse_error"
	DiagMalformedAST DiagKind = "malformed_ast"
)

type Diagnostic struct {
	Kind     DiagKind `json:"kind"`
	File     string   `json:"file"`
	Contract string   `json:"contract,omitempty"`
	Function string   `json:"function,omitempty"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

type ScanRequest struct {
	Path         string
	Workers      int
	ConfigPath   string
	BaselinePath string
}

type ScanResult struct {
	Findings    []Finding        `json:"findings"`
	Summary     map[Severity]int `json:"summary"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
	Elapsed     time.Duration    `json:"elapsed"`
}
