// Package ir holds the per-function control-flow representation the detectors
// analyze, plus the contract-wide storage variable tables built in phase 1.
package ir

import "fmt"

type CallKind int

const (
	KindRawCall CallKind = iota
	KindTransfer
	KindSend
	KindInternal
)

func (k CallKind) String() string {
	switch k {
	case KindRawCall:
		return "raw_call"
	case KindTransfer:
		return "transfer"
	case KindSend:
		return "send"
	default:
		return "internal_call"
	}
}

type GasMode int

const (
	GasForwardAll GasMode = iota
	GasCapped
	GasNone
)

func (g GasMode) String() string {
	switch g {
	case GasForwardAll:
		return "forward_all"
	case GasCapped:
		return "capped"
	default:
		return "none"
	}
}

// TransferStipend is the fixed gas stipend forwarded by transfer/send.
const TransferStipend uint64 = 2300

type TargetClass int

const (
	TargetExternal TargetClass = iota
	TargetInternal
)

// Statement is the tagged IR statement variant. Concrete types below.
type Statement interface {
	Op() string
	Pos() int
}

// StorageWrite records a write to a contract storage variable. Append marks
// dynamic-array push operations, which also grow the array.
type StorageWrite struct {
	Var    string
	Append bool
	Line   int
}

type StorageRead struct {
	Var  string
	Line int
}

// ExternalCall carries both the raw facts recorded by the builder and the
// classification filled in afterwards by the classifier.
type ExternalCall struct {
	// Raw facts from lowering.
	Primitive         string // call | delegatecall | staticcall | transfer | send; "" for named calls
	CalleeName        string // for named calls: the invoked function name
	TargetDesc        string
	TargetAddress     string // hex literal when the target is an address literal
	TargetFromStorage bool
	TargetIsSelf      bool
	HasValue          bool
	HasSelector       bool
	GasArg            *uint64
	// SuccessVar is the local variable bound to the call's success flag,
	// "" when the result is discarded or the primitive has none.
	SuccessVar string
	// PropagatesRevert marks calls that bubble failure up as a revert
	// (transfer, high-level method calls). They cannot leave a success flag
	// unchecked, so no partial state write survives their failure.
	PropagatesRevert bool

	// Classification.
	Kind    CallKind
	GasMode GasMode
	GasCap  uint64
	Target  TargetClass

	Line int
}

// Require records the identifiers its condition reads; the success-flag guard
// check and the structural caller-restriction check both consume these.
type Require struct {
	Reads          []string
	ReadsMsgSender bool
	Line           int
}

type Assert struct {
	Reads          []string
	ReadsMsgSender bool
	Line           int
}

// LoopHeader is the single collapsed node standing for a loop. BodyBlocks
// lists the ids of the blocks lowered from the loop body.
type LoopHeader struct {
	BoundVar         string // storage variable whose length bounds the loop, "" if none
	BoundReadsLength bool
	IterVar          string
	BodyBlocks       []int
	Line             int
}

type Return struct{ Line int }

type Revert struct{ Line int }

func (*StorageWrite) Op() string { return "storage_write" }
func (*StorageRead) Op() string  { return "storage_read" }
func (*ExternalCall) Op() string { return "external_call" }
func (*Require) Op() string      { return "require" }
func (*Assert) Op() string       { return "assert" }
func (*LoopHeader) Op() string   { return "loop_header" }
func (*Return) Op() string       { return "return" }
func (*Revert) Op() string       { return "revert" }

func (s *StorageWrite) Pos() int { return s.Line }
func (s *StorageRead) Pos() int  { return s.Line }
func (s *ExternalCall) Pos() int { return s.Line }
func (s *Require) Pos() int      { return s.Line }
func (s *Assert) Pos() int       { return s.Line }
func (s *LoopHeader) Pos() int   { return s.Line }
func (s *Return) Pos() int       { return s.Line }
func (s *Revert) Pos() int       { return s.Line }

type BasicBlock struct {
	ID    int
	Stmts []Statement
	Succs []*BasicBlock
}

type Function struct {
	Name string
	// Signature qualifies the name with the parameter types
	// ("pay(address)"). Overloads share Name; findings key on Signature.
	Signature  string
	Visibility string
	Mutability string
	DeclIndex  int
	Line       int
	Entry      *BasicBlock
	Blocks     []*BasicBlock
	// Privileged means entry to this function is structurally guarded by a
	// caller check (a require reading msg.sender in the entry block or in a
	// resolved modifier body), or the function is not externally callable.
	Privileged bool
}

// ExternallyCallable reports whether an arbitrary account can invoke the
// function directly.
func (f *Function) ExternallyCallable() bool {
	switch f.Visibility {
	case "internal", "private":
		return false
	}
	return true
}

// Validate checks internal IR invariants. A failure here is a bug in the
// builder, not a property of the scanned contract.
func (f *Function) Validate() error {
	if f.Entry == nil {
		return fmt.Errorf("ir: function %s has no entry block", f.Name)
	}
	ids := make(map[int]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		if b == nil {
			return fmt.Errorf("ir: function %s contains a nil block", f.Name)
		}
		if ids[b.ID] {
			return fmt.Errorf("ir: function %s has duplicate block id %d", f.Name, b.ID)
		}
		ids[b.ID] = true
	}
	if !ids[f.Entry.ID] {
		return fmt.Errorf("ir: function %s entry block %d not in block list", f.Name, f.Entry.ID)
	}
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			if s == nil || !ids[s.ID] {
				return fmt.Errorf("ir: function %s block %d has successor outside function", f.Name, b.ID)
			}
		}
	}
	return nil
}

type Contract struct {
	Name      string
	File      string
	Line      int
	Functions []*Function // declaration order
	Storage   *StorageTable
}

// Function returns the function with the given name, or nil.
func (c *Contract) Function(name string) *Function {
	for _, f := range c.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
