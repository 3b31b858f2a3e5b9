package plugins

import (
	"context"
	"fmt"

	"github.com/xab-mack/dosguard/internal/ir"
	"github.com/xab-mack/dosguard/internal/model"
)

// uncheckedExternalDependency flags state progress that survives a failed
// external call: a storage write reachable after the call with no guard on
// the call's own success flag on the way.
type uncheckedExternalDependency struct{}

func (d *uncheckedExternalDependency) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:       "DOS-UNCHECKED-CALL",
		Title:    "State progress after unchecked external call",
		Severity: model.SeverityHigh,
		Tags:     []string{"dos", "external-call"},
	}
}

func (d *uncheckedExternalDependency) Analyze(ctx context.Context, fctx *FunctionContext) ([]model.Finding, error) {
	var findings []model.Finding
	for _, cf := range fctx.Facts.Calls {
		if len(cf.UncheckedWrites) == 0 {
			continue
		}
		switch cf.Call.Kind {
		case ir.KindRawCall, ir.KindSend:
		default:
			continue
		}
		locs := append([]model.Location{cf.Loc}, cf.UncheckedWrites...)
		findings = append(findings, newFinding(d.Meta(), fctx, locs, cf.Call.Line, 0.85,
			fmt.Sprintf("Storage is written after the %s to %s without checking the call's success flag", cf.Call.Kind, cf.Call.TargetDesc),
			"If the callee fails, the contract still commits state progress that depends on the call having happened; the intended transition can become permanently unreachable.",
			model.MitigationWithdrawal, false))
	}
	return findings, nil
}
