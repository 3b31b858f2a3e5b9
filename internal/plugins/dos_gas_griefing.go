package plugins

import (
	"context"
	"fmt"

	"github.com/xab-mack/dosguard/internal/ir"
	"github.com/xab-mack/dosguard/internal/model"
)

// gasGriefing flags calls an attacker-influenced target can abuse to freeze
// the caller: raw calls forwarding all gas, and fixed-stipend transfer/send
// whose receiver can revert unconditionally. A raw call with an explicit
// finite gas cap never fires here, whatever its success handling.
type gasGriefing struct{}

func (d *gasGriefing) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:       "DOS-GAS-GRIEFING",
		Title:    "External call exposed to gas griefing or revert freeze",
		Severity: model.SeverityMedium,
		Tags:     []string{"dos", "gas"},
	}
}

func (d *gasGriefing) Analyze(ctx context.Context, fctx *FunctionContext) ([]model.Finding, error) {
	var findings []model.Finding
	for _, cf := range fctx.Facts.Calls {
		call := cf.Call
		if call.Target != ir.TargetExternal {
			continue
		}
		locs := []model.Location{cf.Loc}
		switch {
		case call.Kind == ir.KindRawCall && call.GasMode == ir.GasForwardAll:
			findings = append(findings, newFinding(d.Meta(), fctx, locs, call.Line, 0.8,
				fmt.Sprintf("Call to %s forwards all remaining gas to an attacker-influenced address", call.TargetDesc),
				"The callee controls how much of the forwarded budget it burns; checking the success flag does not prevent the caller from being frozen by gas exhaustion.",
				model.MitigationGasCap, false))
		case call.Kind == ir.KindTransfer || call.Kind == ir.KindSend:
			findings = append(findings, newFinding(d.Meta(), fctx, locs, call.Line, 0.6,
				fmt.Sprintf("%s to %s lets the receiver block this function by reverting", call.Kind, call.TargetDesc),
				"The stipend caps gas use, but a receiver whose fallback always reverts makes every invocation fail with no recovery path. Borderline case: review whether the receiver set is trusted.",
				model.MitigationWithdrawal, true))
		}
	}
	return findings, nil
}
