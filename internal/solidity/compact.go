package solidity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xab-mack/dosguard/internal/ast"
)

// DecodeCompact maps solc's compact AST JSON onto the analyzer's ast nodes.
// The mapping is deliberately lenient: constructs the analysis does not model
// decode to nil and the IR builder decides whether the remaining shape is
// usable.
func DecodeCompact(path string, source, raw []byte) (*ast.SourceUnit, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("compact AST: %w", err)
	}
	dec := &compactDecoder{lines: lineOffsets(source)}
	unit := &ast.SourceUnit{Path: path}
	for _, n := range arr(root, "nodes") {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if str(node, "nodeType") == "ContractDefinition" {
			unit.Contracts = append(unit.Contracts, dec.contract(node))
		}
	}
	if len(unit.Contracts) == 0 {
		return nil, fmt.Errorf("compact AST: no contract definitions in %s", path)
	}
	return unit, nil
}

type compactDecoder struct {
	lines []int
}

func (d *compactDecoder) contract(node map[string]any) *ast.Contract {
	c := &ast.Contract{Name: str(node, "name"), Line: d.line(node)}
	for _, n := range arr(node, "nodes") {
		m, ok := n.(map[string]any)
		if !ok {
			continue
		}
		switch str(m, "nodeType") {
		case "VariableDeclaration":
			if b, _ := m["stateVariable"].(bool); b {
				c.StateVars = append(c.StateVars, &ast.StateVar{
					Name: str(m, "name"),
					Type: d.typeName(obj(m, "typeName")),
					Line: d.line(m),
				})
			}
		case "FunctionDefinition":
			c.Functions = append(c.Functions, d.function(m))
		case "ModifierDefinition":
			c.Modifiers = append(c.Modifiers, &ast.Modifier{
				Name: str(m, "name"),
				Body: d.block(obj(m, "body")),
				Line: d.line(m),
			})
		}
	}
	return c
}

func (d *compactDecoder) typeName(m map[string]any) ast.TypeName {
	if m == nil {
		return ast.TypeName{Kind: ast.TypeElementary}
	}
	switch str(m, "nodeType") {
	case "Mapping":
		return ast.TypeName{Kind: ast.TypeMapping}
	case "ArrayTypeName":
		elem := ""
		if base := obj(m, "baseType"); base != nil {
			elem = str(base, "name")
		}
		if length := obj(m, "length"); length != nil {
			size := 0
			if n, err := strconv.Atoi(str(length, "value")); err == nil {
				size = n
			}
			return ast.TypeName{Kind: ast.TypeFixedArray, Name: elem, Size: size}
		}
		return ast.TypeName{Kind: ast.TypeDynamicArray, Name: elem}
	default:
		return ast.TypeName{Kind: ast.TypeElementary, Name: str(m, "name")}
	}
}

func (d *compactDecoder) function(m map[string]any) *ast.Function {
	kind := str(m, "kind")
	f := &ast.Function{
		Name:       str(m, "name"),
		Visibility: str(m, "visibility"),
		Mutability: str(m, "stateMutability"),
		Body:       d.block(obj(m, "body")),
		Line:       d.line(m),
		IsFallback: kind == "fallback" || kind == "receive",
	}
	for _, pn := range arr(obj(m, "parameters"), "parameters") {
		pm, ok := pn.(map[string]any)
		if !ok {
			continue
		}
		// typeDescriptions carries the canonical type string; fall back to the
		// written type name for minimal documents.
		typ := str(obj(pm, "typeDescriptions"), "typeString")
		if typ == "" {
			typ = str(obj(pm, "typeName"), "name")
		}
		f.Params = append(f.Params, typ)
	}
	for _, mi := range arr(m, "modifiers") {
		inv, ok := mi.(map[string]any)
		if !ok {
			continue
		}
		if mn := obj(inv, "modifierName"); mn != nil {
			f.Modifiers = append(f.Modifiers, str(mn, "name"))
		}
	}
	return f
}

func (d *compactDecoder) block(m map[string]any) *ast.Block {
	if m == nil {
		return nil
	}
	b := &ast.Block{}
	for _, sn := range arr(m, "statements") {
		sm, ok := sn.(map[string]any)
		if !ok {
			continue
		}
		switch str(sm, "nodeType") {
		case "Block", "UncheckedBlock":
			// Inline nested blocks; the checked/unchecked distinction does
			// not affect control flow.
			if inner := d.block(sm); inner != nil {
				b.Stmts = append(b.Stmts, inner.Stmts...)
			}
		default:
			if s := d.stmt(sm); s != nil {
				b.Stmts = append(b.Stmts, s)
			}
		}
	}
	return b
}

// asBlock wraps a single statement body (if (x) y = 1;) into a block.
func (d *compactDecoder) asBlock(m map[string]any) *ast.Block {
	if m == nil {
		return nil
	}
	if nt := str(m, "nodeType"); nt == "Block" || nt == "UncheckedBlock" {
		return d.block(m)
	}
	if s := d.stmt(m); s != nil {
		return &ast.Block{Stmts: []ast.Stmt{s}}
	}
	return &ast.Block{}
}

func (d *compactDecoder) stmt(m map[string]any) ast.Stmt {
	line := d.line(m)
	switch str(m, "nodeType") {
	case "ExpressionStatement":
		if x := d.expr(obj(m, "expression")); x != nil {
			return &ast.ExprStmt{X: x, Line: line}
		}
		return nil
	case "VariableDeclarationStatement":
		vd := &ast.VarDecl{Line: line, Value: d.expr(obj(m, "initialValue"))}
		for _, dn := range arr(m, "declarations") {
			if dm, ok := dn.(map[string]any); ok {
				vd.Names = append(vd.Names, str(dm, "name"))
			} else {
				vd.Names = append(vd.Names, "")
			}
		}
		return vd
	case "IfStatement":
		return &ast.If{
			Cond: d.expr(obj(m, "condition")),
			Then: d.asBlock(obj(m, "trueBody")),
			Else: d.asBlock(obj(m, "falseBody")),
			Line: line,
		}
	case "ForStatement":
		var init ast.Stmt
		if im := obj(m, "initializationExpression"); im != nil {
			init = d.stmt(im)
		}
		var post ast.Stmt
		if pm := obj(m, "loopExpression"); pm != nil {
			post = d.stmt(pm)
		}
		return &ast.For{
			Init: init,
			Cond: d.expr(obj(m, "condition")),
			Post: post,
			Body: d.asBlock(obj(m, "body")),
			Line: line,
		}
	case "WhileStatement":
		return &ast.While{
			Cond: d.expr(obj(m, "condition")),
			Body: d.asBlock(obj(m, "body")),
			Line: line,
		}
	case "Return":
		return &ast.Return{Value: d.expr(obj(m, "expression")), Line: line}
	case "RevertStatement":
		return &ast.ExprStmt{X: &ast.Call{Callee: &ast.Ident{Name: "revert"}}, Line: line}
	default:
		// Emit, Break, Continue, PlaceholderStatement and friends carry no
		// facts the detectors use.
		return nil
	}
}

func (d *compactDecoder) expr(m map[string]any) ast.Expr {
	if m == nil {
		return nil
	}
	switch str(m, "nodeType") {
	case "Identifier":
		return &ast.Ident{Name: str(m, "name")}
	case "MemberAccess":
		return &ast.Member{X: d.expr(obj(m, "expression")), Sel: str(m, "memberName")}
	case "IndexAccess":
		return &ast.Index{X: d.expr(obj(m, "baseExpression")), I: d.expr(obj(m, "indexExpression"))}
	case "FunctionCall":
		call := &ast.Call{}
		callee := obj(m, "expression")
		if callee != nil && str(callee, "nodeType") == "FunctionCallOptions" {
			call.Callee = d.expr(obj(callee, "expression"))
			call.Options = d.callOptions(callee)
		} else {
			call.Callee = d.expr(callee)
		}
		for _, a := range arr(m, "arguments") {
			if am, ok := a.(map[string]any); ok {
				call.Args = append(call.Args, d.expr(am))
			}
		}
		return call
	case "FunctionCallOptions":
		// Bare options node (no invocation); decode as the inner target.
		return d.expr(obj(m, "expression"))
	case "Assignment":
		return &ast.Assign{
			Op:  str(m, "operator"),
			LHS: d.expr(obj(m, "leftHandSide")),
			RHS: d.expr(obj(m, "rightHandSide")),
		}
	case "BinaryOperation":
		return &ast.Binary{
			Op: str(m, "operator"),
			X:  d.expr(obj(m, "leftExpression")),
			Y:  d.expr(obj(m, "rightExpression")),
		}
	case "UnaryOperation":
		return &ast.Unary{Op: str(m, "operator"), X: d.expr(obj(m, "subExpression"))}
	case "Literal":
		return &ast.Literal{Kind: str(m, "kind"), Value: str(m, "value")}
	case "TupleExpression":
		t := &ast.Tuple{}
		for _, cn := range arr(m, "components") {
			if cm, ok := cn.(map[string]any); ok {
				t.Elems = append(t.Elems, d.expr(cm))
			}
		}
		return t
	case "ElementaryTypeNameExpression":
		// payable(...) / address(...) casts surface as a call on the type
		// name; the builder unwraps them.
		if tn := obj(m, "typeName"); tn != nil {
			return &ast.Ident{Name: str(tn, "name")}
		}
		return &ast.Ident{Name: str(m, "typeName")}
	case "NewExpression":
		return &ast.Ident{Name: "new"}
	default:
		return nil
	}
}

func (d *compactDecoder) callOptions(m map[string]any) map[string]ast.Expr {
	names := arr(m, "names")
	options := arr(m, "options")
	if len(names) == 0 || len(names) != len(options) {
		return nil
	}
	out := make(map[string]ast.Expr, len(names))
	for i, n := range names {
		name, ok := n.(string)
		if !ok {
			continue
		}
		if om, ok := options[i].(map[string]any); ok {
			out[name] = d.expr(om)
		}
	}
	return out
}

// line converts a src attribute ("offset:length:file") into a 1-based line.
func (d *compactDecoder) line(m map[string]any) int {
	src := str(m, "src")
	if src == "" {
		return 0
	}
	parts := strings.SplitN(src, ":", 2)
	off, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	// lines[i] is the byte offset where line i+1 starts.
	lo, hi := 0, len(d.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.lines[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func lineOffsets(source []byte) []int {
	offs := []int{0}
	for i, b := range source {
		if b == '\n' {
			offs = append(offs, i+1)
		}
	}
	return offs
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func obj(m map[string]any, key string) map[string]any {
	o, _ := m[key].(map[string]any)
	return o
}

func arr(m map[string]any, key string) []any {
	a, _ := m[key].([]any)
	return a
}
