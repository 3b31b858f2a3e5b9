package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xab-mack/dosguard/internal/model"
	"github.com/xab-mack/dosguard/internal/util"
)

func newFinding(meta model.RuleMeta, fctx *FunctionContext, locs []model.Location, line int, confidence float64, message, rationale string, mitigation model.Mitigation, needsReview bool) model.Finding {
	// Findings carry the signature-qualified name: block/statement ids restart
	// per function, so overloads would otherwise collide on identity.
	return model.Finding{
		RuleID:      meta.ID,
		Severity:    meta.Severity,
		Confidence:  confidence,
		File:        fctx.File,
		Contract:    fctx.Contract.Name,
		Function:    fctx.Function.Signature,
		Line:        line,
		Locations:   locs,
		Message:     message,
		Rationale:   rationale,
		Mitigation:  mitigation,
		NeedsReview: needsReview,
		Fingerprint: util.Fingerprint(meta.ID, fctx.File, fctx.Contract.Name, fctx.Function.Signature, LocString(locs)),
	}
}

// LocString renders a location set canonically (sorted) for fingerprints and
// dedupe keys.
func LocString(locs []model.Location) string {
	sorted := append([]model.Location(nil), locs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Block != sorted[j].Block {
			return sorted[i].Block < sorted[j].Block
		}
		return sorted[i].Statement < sorted[j].Statement
	})
	parts := make([]string, len(sorted))
	for i, l := range sorted {
		parts[i] = fmt.Sprintf("%d:%d", l.Block, l.Statement)
	}
	return strings.Join(parts, ",")
}
