package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xab-mack/dosguard/internal/ir"
)

func TestCallClassification(t *testing.T) {
	gas := uint64(5000)
	cases := []struct {
		name    string
		call    ir.ExternalCall
		kind    ir.CallKind
		gasMode ir.GasMode
		gasCap  uint64
		target  ir.TargetClass
	}{
		{
			name:    "transfer gets the fixed stipend",
			call:    ir.ExternalCall{Primitive: "transfer"},
			kind:    ir.KindTransfer,
			gasMode: ir.GasCapped,
			gasCap:  ir.TransferStipend,
			target:  ir.TargetExternal,
		},
		{
			name:    "send gets the fixed stipend",
			call:    ir.ExternalCall{Primitive: "send"},
			kind:    ir.KindSend,
			gasMode: ir.GasCapped,
			gasCap:  ir.TransferStipend,
			target:  ir.TargetExternal,
		},
		{
			name:    "raw call without gas option forwards everything",
			call:    ir.ExternalCall{Primitive: "call"},
			kind:    ir.KindRawCall,
			gasMode: ir.GasForwardAll,
			target:  ir.TargetExternal,
		},
		{
			name:    "raw call with explicit gas is capped",
			call:    ir.ExternalCall{Primitive: "call", GasArg: &gas},
			kind:    ir.KindRawCall,
			gasMode: ir.GasCapped,
			gasCap:  5000,
			target:  ir.TargetExternal,
		},
		{
			name:    "delegatecall is a raw call",
			call:    ir.ExternalCall{Primitive: "delegatecall"},
			kind:    ir.KindRawCall,
			gasMode: ir.GasForwardAll,
			target:  ir.TargetExternal,
		},
		{
			name:    "named call to own function is internal",
			call:    ir.ExternalCall{CalleeName: "helper", TargetIsSelf: true},
			kind:    ir.KindInternal,
			gasMode: ir.GasNone,
			target:  ir.TargetInternal,
		},
		{
			name:    "high-level method defaults to the worst case",
			call:    ir.ExternalCall{HasSelector: true, TargetFromStorage: true},
			kind:    ir.KindRawCall,
			gasMode: ir.GasForwardAll,
			target:  ir.TargetExternal,
		},
		{
			name:    "self-targeted primitive is internal",
			call:    ir.ExternalCall{Primitive: "call", TargetIsSelf: true},
			kind:    ir.KindInternal,
			gasMode: ir.GasNone,
			target:  ir.TargetInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec := tc.call
			Call(&ec, nil)
			assert.Equal(t, tc.kind, ec.Kind)
			assert.Equal(t, tc.gasMode, ec.GasMode)
			assert.Equal(t, tc.gasCap, ec.GasCap)
			assert.Equal(t, tc.target, ec.Target)
		})
	}
}

func TestTrustedAddressClassifiesInternal(t *testing.T) {
	addr := "0x52908400098527886E0F7030069857D2E4169EE7"
	trusted := NewTrustedSet([]string{addr})

	ec := ir.ExternalCall{Primitive: "call", TargetAddress: addr}
	Call(&ec, trusted)
	assert.Equal(t, ir.TargetInternal, ec.Target)
	assert.Equal(t, ir.KindInternal, ec.Kind)

	other := ir.ExternalCall{Primitive: "call", TargetAddress: "0x8617E340B3D01FA5F11F306F4090FD50E238070D"}
	Call(&other, trusted)
	assert.Equal(t, ir.TargetExternal, other.Target)
}

func TestNewTrustedSetSkipsInvalid(t *testing.T) {
	s := NewTrustedSet([]string{"not-an-address", "0x52908400098527886E0F7030069857D2E4169EE7"})
	assert.Len(t, s, 1)
}

func TestContractClassifiesAllCalls(t *testing.T) {
	ec := &ir.ExternalCall{Primitive: "send"}
	blk := &ir.BasicBlock{ID: 1, Stmts: []ir.Statement{ec}}
	c := &ir.Contract{
		Name:      "C",
		Functions: []*ir.Function{{Name: "f", Visibility: "public", Entry: blk, Blocks: []*ir.BasicBlock{blk}}},
	}
	Contract(c, nil)
	assert.Equal(t, ir.KindSend, ec.Kind)
	assert.Equal(t, ir.GasCapped, ec.GasMode)
}
