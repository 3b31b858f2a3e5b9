// Package analysis computes per-function dataflow facts over the IR: storage
// writes reachable after an external call without a success check, and loops
// bounded by attacker-growable collections. Both are deterministic, pure
// functions of the IR plus the read-only phase-1 storage tables.
package analysis

import (
	"github.com/xab-mack/dosguard/internal/ir"
	"github.com/xab-mack/dosguard/internal/model"
)

// CallFacts records one external call site and every storage write reachable
// from it along a path with no intervening guard on the call's success flag.
type CallFacts struct {
	Loc             model.Location
	Call            *ir.ExternalCall
	UncheckedWrites []model.Location
}

// LoopFacts records one loop whose bound an arbitrary caller can grow.
type LoopFacts struct {
	Loc     model.Location
	Header  *ir.LoopHeader
	Var     *ir.StorageVariable
	Growers []string
	// MovesValue reports whether the loop body performs a value-bearing
	// external call, which picks the suggested mitigation.
	MovesValue bool
}

type FunctionFacts struct {
	Calls []CallFacts
	Loops []LoopFacts
}

// Analyze runs both per-function analyses. The storage table must already be
// complete (phase 1); it is only read here.
func Analyze(fn *ir.Function, storage *ir.StorageTable) *FunctionFacts {
	facts := &FunctionFacts{}
	blocks := blockIndex(fn)
	for _, b := range fn.Blocks {
		for i, s := range b.Stmts {
			switch st := s.(type) {
			case *ir.ExternalCall:
				facts.Calls = append(facts.Calls, CallFacts{
					Loc:             model.Location{Block: b.ID, Statement: i},
					Call:            st,
					UncheckedWrites: postCallWrites(fn, b, i, st),
				})
			case *ir.LoopHeader:
				if lf, ok := growableLoop(fn, blocks, b, i, st, storage); ok {
					facts.Loops = append(facts.Loops, lf)
				}
			}
		}
	}
	return facts
}

// postCallWrites walks forward from the statement after the call, collecting
// storage writes reached before any Require/Assert that reads the call's
// success flag. Paths end at Return/Revert and at blocks with no successors;
// the visited set makes loop back edges harmless.
func postCallWrites(fn *ir.Function, start *ir.BasicBlock, callIdx int, call *ir.ExternalCall) []model.Location {
	if call.Kind == ir.KindInternal {
		return nil
	}
	// A call that reverts on failure cannot strand partial state behind an
	// unchecked flag.
	if call.PropagatesRevert {
		return nil
	}
	var writes []model.Location
	visited := make(map[int]bool)

	type frame struct {
		block *ir.BasicBlock
		idx   int
	}
	stack := []frame{{start, callIdx + 1}}
	visited[start.ID] = true
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stopped := false
		for i := f.idx; i < len(f.block.Stmts); i++ {
			switch st := f.block.Stmts[i].(type) {
			case *ir.StorageWrite:
				writes = append(writes, model.Location{Block: f.block.ID, Statement: i})
			case *ir.Require:
				if guardsSuccess(st.Reads, call.SuccessVar) {
					stopped = true
				}
			case *ir.Assert:
				if guardsSuccess(st.Reads, call.SuccessVar) {
					stopped = true
				}
			case *ir.Return, *ir.Revert:
				stopped = true
			}
			if stopped {
				break
			}
		}
		if stopped {
			continue
		}
		for _, succ := range f.block.Succs {
			if !visited[succ.ID] {
				visited[succ.ID] = true
				stack = append(stack, frame{succ, 0})
			}
		}
	}
	return writes
}

func guardsSuccess(reads []string, successVar string) bool {
	if successVar == "" {
		return false
	}
	for _, r := range reads {
		if r == successVar {
			return true
		}
	}
	return false
}

func growableLoop(fn *ir.Function, blocks map[int]*ir.BasicBlock, b *ir.BasicBlock, idx int, hdr *ir.LoopHeader, storage *ir.StorageTable) (LoopFacts, bool) {
	if !hdr.BoundReadsLength {
		return LoopFacts{}, false
	}
	v := storage.Lookup(hdr.BoundVar)
	if v == nil || v.Kind != ir.VarDynamicArray {
		// Fixed-size arrays and mappings never make an unbounded loop.
		return LoopFacts{}, false
	}
	if len(v.UnprivilegedGrowers) == 0 {
		return LoopFacts{}, false
	}
	lf := LoopFacts{
		Loc:     model.Location{Block: b.ID, Statement: idx},
		Header:  hdr,
		Var:     v,
		Growers: append([]string(nil), v.UnprivilegedGrowers...),
	}
	for _, id := range hdr.BodyBlocks {
		body := blocks[id]
		if body == nil {
			continue
		}
		for _, s := range body.Stmts {
			if ec, ok := s.(*ir.ExternalCall); ok && ec.HasValue {
				lf.MovesValue = true
			}
		}
	}
	return lf, true
}

func blockIndex(fn *ir.Function) map[int]*ir.BasicBlock {
	m := make(map[int]*ir.BasicBlock, len(fn.Blocks))
	for _, b := range fn.Blocks {
		m[b.ID] = b
	}
	return m
}
