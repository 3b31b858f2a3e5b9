package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/xab-mack/dosguard/internal/model"
)

// unboundedLoop flags loops bounded by the length of a dynamic array any
// caller can append to: the attacker grows the collection until the loop no
// longer fits in a block's gas.
type unboundedLoop struct{}

func (d *unboundedLoop) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:       "DOS-UNBOUNDED-LOOP",
		Title:    "Loop bounded by attacker-growable collection",
		Severity: model.SeverityHigh,
		Tags:     []string{"dos", "loop"},
	}
}

func (d *unboundedLoop) Analyze(ctx context.Context, fctx *FunctionContext) ([]model.Finding, error) {
	var findings []model.Finding
	for _, lf := range fctx.Facts.Loops {
		mitigation := model.MitigationBoundedLoop
		if lf.MovesValue {
			// Loops that push funds per element should move to caller-pulled
			// withdrawals instead of a tighter bound.
			mitigation = model.MitigationWithdrawal
		}
		findings = append(findings, newFinding(d.Meta(), fctx, []model.Location{lf.Loc}, lf.Header.Line, 0.85,
			fmt.Sprintf("Loop over %s.length, which %s can grow without restriction", lf.Var.Name, joinFuncs(lf.Growers)),
			"Anyone can append to the collection until iterating it exceeds the block gas limit, making this function permanently uncallable.",
			mitigation, false))
	}
	return findings, nil
}

func joinFuncs(names []string) string {
	if len(names) == 1 {
		return names[0] + "()"
	}
	return strings.Join(names, "(), ") + "()"
}
