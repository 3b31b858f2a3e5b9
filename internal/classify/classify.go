// Package classify tags every external call in a contract's IR with its kind,
// gas mode and target class. Classification is pure and total: every call
// gets a tag, and unresolvable targets default to the worst case (external,
// all gas forwarded) so nothing is missed.
package classify

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xab-mack/dosguard/internal/ir"
)

// TrustedSet holds addresses the operator vouches for; calls targeting them
// classify as internal.
type TrustedSet map[common.Address]struct{}

// NewTrustedSet normalizes hex address strings into a set. Invalid entries
// are skipped; config validation reports them separately.
func NewTrustedSet(addrs []string) TrustedSet {
	s := make(TrustedSet, len(addrs))
	for _, a := range addrs {
		if common.IsHexAddress(a) {
			s[common.HexToAddress(a)] = struct{}{}
		}
	}
	return s
}

// Contract classifies every ExternalCall statement in place.
func Contract(c *ir.Contract, trusted TrustedSet) {
	for _, fn := range c.Functions {
		for _, b := range fn.Blocks {
			for _, s := range b.Stmts {
				if ec, ok := s.(*ir.ExternalCall); ok {
					Call(ec, trusted)
				}
			}
		}
	}
}

// Call fills in Kind, GasMode, GasCap and Target from the raw call facts.
func Call(ec *ir.ExternalCall, trusted TrustedSet) {
	ec.Target = targetClass(ec, trusted)

	switch ec.Primitive {
	case "transfer":
		ec.Kind = ir.KindTransfer
		ec.GasMode = ir.GasCapped
		ec.GasCap = ir.TransferStipend
	case "send":
		ec.Kind = ir.KindSend
		ec.GasMode = ir.GasCapped
		ec.GasCap = ir.TransferStipend
	case "call", "delegatecall", "staticcall":
		ec.Kind = ir.KindRawCall
		if ec.GasArg != nil {
			ec.GasMode = ir.GasCapped
			ec.GasCap = *ec.GasArg
		} else {
			ec.GasMode = ir.GasForwardAll
		}
	default:
		if ec.CalleeName != "" && ec.TargetIsSelf {
			// Plain call to a function declared on this contract.
			ec.Kind = ir.KindInternal
			ec.GasMode = ir.GasNone
			return
		}
		// High-level method call or unresolvable callee: worst case.
		ec.Kind = ir.KindRawCall
		ec.GasMode = ir.GasForwardAll
	}

	if ec.Target == ir.TargetInternal {
		ec.Kind = ir.KindInternal
		ec.GasMode = ir.GasNone
		ec.GasCap = 0
	}
}

func targetClass(ec *ir.ExternalCall, trusted TrustedSet) ir.TargetClass {
	if ec.TargetIsSelf {
		return ir.TargetInternal
	}
	if ec.TargetAddress != "" && common.IsHexAddress(ec.TargetAddress) {
		if _, ok := trusted[common.HexToAddress(ec.TargetAddress)]; ok {
			return ir.TargetInternal
		}
	}
	// Storage-derived, caller-supplied and unresolvable targets are all
	// attacker-influenced until proven otherwise.
	return ir.TargetExternal
}
