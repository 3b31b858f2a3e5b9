package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xab-mack/dosguard/internal/ast"
)

// MalformedASTError reports an AST shape the lowering cannot handle. The
// offending function is skipped; the rest of the contract still analyzes.
type MalformedASTError struct {
	Contract string
	Function string
	Line     int
	Reason   string
}

func (e *MalformedASTError) Error() string {
	return fmt.Sprintf("malformed AST in %s.%s (line %d): %s", e.Contract, e.Function, e.Line, e.Reason)
}

// BuildContract lowers every declared function into a CFG and populates the
// storage variable tables. Functions whose AST cannot be lowered are skipped
// and reported; partial results are always produced.
func BuildContract(file string, c *ast.Contract) (*Contract, []*MalformedASTError) {
	scope := newContractScope(c)
	out := &Contract{Name: c.Name, File: file, Line: c.Line}
	var errs []*MalformedASTError
	for i, fn := range c.Functions {
		fb := &funcBuilder{scope: scope, contract: c.Name}
		built, err := fb.build(i, fn)
		if err != nil {
			if m, ok := err.(*MalformedASTError); ok {
				errs = append(errs, m)
				continue
			}
			errs = append(errs, &MalformedASTError{Contract: c.Name, Function: fnName(fn), Line: fn.Line, Reason: err.Error()})
			continue
		}
		built.DeclIndex = len(out.Functions)
		out.Functions = append(out.Functions, built)
	}
	out.Storage = buildStorageTable(c.StateVars, out.Functions)
	return out, errs
}

func fnName(fn *ast.Function) string {
	switch {
	case fn.Name != "":
		return fn.Name
	case fn.IsFallback:
		return "fallback"
	default:
		return "constructor"
	}
}

type contractScope struct {
	stateVars map[string]ast.TypeName
	funcs     map[string]bool
	modifiers map[string]*ast.Modifier
}

func newContractScope(c *ast.Contract) *contractScope {
	s := &contractScope{
		stateVars: make(map[string]ast.TypeName, len(c.StateVars)),
		funcs:     make(map[string]bool, len(c.Functions)),
		modifiers: make(map[string]*ast.Modifier, len(c.Modifiers)),
	}
	for _, v := range c.StateVars {
		s.stateVars[v.Name] = v.Type
	}
	for _, f := range c.Functions {
		if f.Name != "" {
			s.funcs[f.Name] = true
		}
	}
	for _, m := range c.Modifiers {
		s.modifiers[m.Name] = m
	}
	return s
}

func (s *contractScope) isStateVar(name string) bool {
	_, ok := s.stateVars[name]
	return ok
}

type funcBuilder struct {
	scope      *contractScope
	contract   string
	fn         *Function
	cur        *BasicBlock
	nextID     int
	terminated bool
	synth      int
	// recording collects ids of blocks created while lowering loop bodies,
	// one recorder per active (possibly nested) loop.
	recording []*[]int
}

func (b *funcBuilder) build(declIndex int, fn *ast.Function) (*Function, error) {
	name := fnName(fn)
	vis := fn.Visibility
	if vis == "" {
		vis = "public"
	}
	mut := fn.Mutability
	if mut == "" {
		mut = "nonpayable"
	}
	b.fn = &Function{
		Name:       name,
		Signature:  name + "(" + strings.Join(fn.Params, ",") + ")",
		Visibility: vis,
		Mutability: mut,
		DeclIndex:  declIndex,
		Line:       fn.Line,
	}
	b.cur = b.newBlock()
	b.fn.Entry = b.cur
	if fn.Body != nil {
		if err := b.lowerBlock(fn.Body); err != nil {
			return nil, err
		}
	}
	b.fn.Privileged = b.computePrivileged(fn)
	return b.fn, nil
}

func (b *funcBuilder) fail(line int, reason string) error {
	return &MalformedASTError{Contract: b.contract, Function: b.fn.Name, Line: line, Reason: reason}
}

func (b *funcBuilder) newBlock() *BasicBlock {
	b.nextID++
	blk := &BasicBlock{ID: b.nextID}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	for _, rec := range b.recording {
		*rec = append(*rec, blk.ID)
	}
	return blk
}

func link(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
}

// emit appends to the current block, opening a fresh (unreachable) block if
// the previous statement terminated control flow.
func (b *funcBuilder) emit(s Statement) {
	if b.terminated {
		b.cur = b.newBlock()
		b.terminated = false
	}
	b.cur.Stmts = append(b.cur.Stmts, s)
}

func (b *funcBuilder) lowerBlock(blk *ast.Block) error {
	for _, s := range blk.Stmts {
		if err := b.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *funcBuilder) lowerStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.ExprStmt:
		if st.X == nil {
			return b.fail(st.Line, "expression statement with no expression")
		}
		return b.lowerExpr(st.X, st.Line, nil)
	case *ast.VarDecl:
		if st.Value == nil {
			return nil
		}
		return b.lowerExpr(st.Value, st.Line, st.Names)
	case *ast.If:
		return b.lowerIf(st)
	case *ast.For:
		return b.lowerLoop(st.Init, st.Cond, st.Post, st.Body, st.Line)
	case *ast.While:
		return b.lowerLoop(nil, st.Cond, nil, st.Body, st.Line)
	case *ast.Return:
		if st.Value != nil {
			// return payee.send(x): the flag goes to the caller, but the call
			// itself must still surface.
			if pc := b.findPrimitive(st.Value); pc != nil {
				if err := b.emitExternalCall(pc, b.syntheticVar(), st.Line); err != nil {
					return err
				}
			}
			b.emitReads(st.Value, st.Line)
		}
		b.emit(&Return{Line: st.Line})
		b.terminated = true
		return nil
	default:
		return b.fail(s.Pos(), "unknown statement node")
	}
}

func (b *funcBuilder) lowerIf(st *ast.If) error {
	if st.Cond == nil {
		return b.fail(st.Line, "if statement with no condition")
	}
	if err := b.foldCondCall(st.Cond, st.Line); err != nil {
		return err
	}
	b.emitReads(st.Cond, st.Line)
	cond := b.cur
	condTerm := b.terminated

	thenB := b.newBlock()
	if !condTerm {
		link(cond, thenB)
	}
	b.cur, b.terminated = thenB, false
	if st.Then != nil {
		if err := b.lowerBlock(st.Then); err != nil {
			return err
		}
	}
	thenEnd, thenTerm := b.cur, b.terminated

	var elseEnd *BasicBlock
	elseTerm := false
	if st.Else != nil {
		elseB := b.newBlock()
		if !condTerm {
			link(cond, elseB)
		}
		b.cur, b.terminated = elseB, false
		if err := b.lowerBlock(st.Else); err != nil {
			return err
		}
		elseEnd, elseTerm = b.cur, b.terminated
	}

	join := b.newBlock()
	if st.Else == nil && !condTerm {
		link(cond, join)
	}
	if !thenTerm {
		link(thenEnd, join)
	}
	if elseEnd != nil && !elseTerm {
		link(elseEnd, join)
	}
	b.cur, b.terminated = join, false
	return nil
}

// lowerLoop collapses the loop into a single header node with explicit body
// and exit blocks; the back edge closes the cycle.
func (b *funcBuilder) lowerLoop(init ast.Stmt, cond ast.Expr, post ast.Stmt, body *ast.Block, line int) error {
	if init != nil {
		if err := b.lowerStmt(init); err != nil {
			return err
		}
	}
	pre := b.cur
	preTerm := b.terminated
	header := b.newBlock()
	if !preTerm {
		link(pre, header)
	}
	b.cur, b.terminated = header, false
	if cond != nil {
		if err := b.foldCondCall(cond, line); err != nil {
			return err
		}
		b.emitReads(cond, line)
	}
	hdr := b.loopHeader(init, cond, line)
	b.emit(hdr)

	var bodyIDs []int
	b.recording = append(b.recording, &bodyIDs)
	bodyB := b.newBlock()
	link(header, bodyB)
	b.cur, b.terminated = bodyB, false
	if body != nil {
		if err := b.lowerBlock(body); err != nil {
			b.recording = b.recording[:len(b.recording)-1]
			return err
		}
	}
	if post != nil && !b.terminated {
		if err := b.lowerStmt(post); err != nil {
			b.recording = b.recording[:len(b.recording)-1]
			return err
		}
	}
	if !b.terminated {
		link(b.cur, header)
	}
	b.recording = b.recording[:len(b.recording)-1]
	hdr.BodyBlocks = bodyIDs

	exit := b.newBlock()
	link(header, exit)
	b.cur, b.terminated = exit, false
	return nil
}

func (b *funcBuilder) loopHeader(init ast.Stmt, cond ast.Expr, line int) *LoopHeader {
	hdr := &LoopHeader{Line: line}
	if cond != nil {
		if v, ok := b.lengthBound(cond); ok {
			hdr.BoundVar = v
			hdr.BoundReadsLength = true
		}
	}
	if vd, ok := init.(*ast.VarDecl); ok && len(vd.Names) > 0 {
		hdr.IterVar = vd.Names[0]
	} else if bin, ok := cond.(*ast.Binary); ok {
		if id, ok := bin.X.(*ast.Ident); ok {
			hdr.IterVar = id.Name
		}
	}
	return hdr
}

// foldCondCall lowers a call primitive nested inside a branch or loop
// condition, e.g. if (!payee.send(amount)). The condition inspects the call's
// result on every outgoing path, so a guard reading the synthetic flag follows
// the call.
func (b *funcBuilder) foldCondCall(cond ast.Expr, line int) error {
	pc := b.findPrimitive(cond)
	if pc == nil {
		return nil
	}
	succ := b.syntheticVar()
	if err := b.emitExternalCall(pc, succ, line); err != nil {
		return err
	}
	b.emit(&Require{
		Reads:          append(identsIn(cond), succ),
		ReadsMsgSender: readsMsgSender(cond),
		Line:           line,
	})
	return nil
}

// lengthBound finds a read of <stateDynamicArray>.length inside the loop
// condition.
func (b *funcBuilder) lengthBound(e ast.Expr) (string, bool) {
	found := ""
	walkExpr(e, func(x ast.Expr) {
		m, ok := x.(*ast.Member)
		if !ok || m.Sel != "length" {
			return
		}
		base, ok := baseIdent(m.X)
		if !ok || !b.scope.isStateVar(base) {
			return
		}
		if found == "" {
			found = base
		}
	})
	return found, found != ""
}

// lowerExpr lowers a statement-level expression. declNames carries the names
// bound by an enclosing variable declaration, used to pick up success flags
// from (bool sent, ) = addr.call{...}("") forms.
func (b *funcBuilder) lowerExpr(x ast.Expr, line int, declNames []string) error {
	switch e := x.(type) {
	case *ast.Assign:
		return b.lowerAssign(e, line)
	case *ast.Call:
		return b.lowerCall(e, line, declNames)
	default:
		// bool ok = !payee.send(x): the primitive hides inside a wrapper
		// expression; the declared name still tracks its result.
		if pc := b.findPrimitive(x); pc != nil {
			succ := firstName(declNames)
			if succ == "" {
				succ = b.syntheticVar()
			}
			if err := b.emitExternalCall(pc, succ, line); err != nil {
				return err
			}
		}
		b.emitReads(x, line)
		return nil
	}
}

func (b *funcBuilder) lowerAssign(e *ast.Assign, line int) error {
	if e.LHS == nil || e.RHS == nil {
		return b.fail(line, "assignment missing operand")
	}
	b.emitReads(e.RHS, line)
	if pc := b.findPrimitive(e.RHS); pc != nil {
		succ := ""
		if id, ok := e.LHS.(*ast.Ident); ok && !b.scope.isStateVar(id.Name) {
			succ = id.Name
		}
		if err := b.emitExternalCall(pc, succ, line); err != nil {
			return err
		}
	}
	if base, ok := baseIdent(e.LHS); ok && b.scope.isStateVar(base) {
		b.emit(&StorageWrite{Var: base, Line: line})
	}
	return nil
}

func (b *funcBuilder) lowerCall(c *ast.Call, line int, declNames []string) error {
	if c.Callee == nil {
		return b.fail(line, "call with no target expression")
	}
	switch callee := c.Callee.(type) {
	case *ast.Ident:
		return b.lowerNamedCall(callee.Name, c, line)
	case *ast.Member:
		return b.lowerMemberCall(callee, c, line, declNames)
	default:
		b.emitReads(c, line)
		return nil
	}
}

func (b *funcBuilder) lowerNamedCall(name string, c *ast.Call, line int) error {
	switch name {
	case "require", "assert":
		if len(c.Args) == 0 {
			return b.fail(line, name+" with no condition")
		}
		cond := c.Args[0]
		reads := identsIn(cond)
		// require(addr.send(x)) folds the success check into the guard:
		// lower the call first, then a guard reading its synthetic flag.
		if pc := b.findPrimitive(cond); pc != nil {
			succ := b.syntheticVar()
			if err := b.emitExternalCall(pc, succ, line); err != nil {
				return err
			}
			reads = append(reads, succ)
		} else {
			b.emitReads(cond, line)
		}
		if name == "require" {
			b.emit(&Require{Reads: reads, ReadsMsgSender: readsMsgSender(cond), Line: line})
		} else {
			b.emit(&Assert{Reads: reads, ReadsMsgSender: readsMsgSender(cond), Line: line})
		}
		return nil
	case "revert":
		b.emit(&Revert{Line: line})
		b.terminated = true
		return nil
	default:
		b.emitArgReads(c.Args, line)
		b.emit(&ExternalCall{
			CalleeName:   name,
			TargetDesc:   name,
			TargetIsSelf: b.scope.funcs[name],
			Line:         line,
		})
		return nil
	}
}

func (b *funcBuilder) lowerMemberCall(callee *ast.Member, c *ast.Call, line int, declNames []string) error {
	if callee.X == nil {
		return b.fail(line, "member call with no receiver")
	}
	if callee.Sel == "push" {
		if base, ok := baseIdent(callee.X); ok && b.scope.isStateVar(base) {
			b.emitArgReads(c.Args, line)
			b.emit(&StorageWrite{Var: base, Append: true, Line: line})
			return nil
		}
	}
	b.emitReads(callee.X, line)
	b.emitArgReads(c.Args, line)
	if isPrimitive(callee.Sel, len(c.Args)) {
		return b.emitExternalCall(c, firstName(declNames), line)
	}
	// High-level external method call: forwards all gas, selector present,
	// reverts on failure rather than returning a flag.
	ec := &ExternalCall{HasSelector: true, PropagatesRevert: true, Line: line}
	b.describeTarget(ec, callee.X)
	if _, ok := c.Options["value"]; ok {
		ec.HasValue = true
	}
	b.emit(ec)
	return nil
}

// isPrimitive recognizes the address primitives. transfer/send are only
// primitives with a single argument; two-argument forms are token methods.
func isPrimitive(sel string, nargs int) bool {
	switch sel {
	case "call", "delegatecall", "staticcall":
		return true
	case "transfer", "send":
		return nargs == 1
	}
	return false
}

// findPrimitive locates a low-level call expression nested anywhere in e.
func (b *funcBuilder) findPrimitive(e ast.Expr) *ast.Call {
	var found *ast.Call
	walkExpr(e, func(x ast.Expr) {
		c, ok := x.(*ast.Call)
		if !ok || found != nil {
			return
		}
		if m, ok := c.Callee.(*ast.Member); ok && isPrimitive(m.Sel, len(c.Args)) {
			found = c
		}
	})
	return found
}

func (b *funcBuilder) emitExternalCall(c *ast.Call, successVar string, line int) error {
	m, ok := c.Callee.(*ast.Member)
	if !ok || m.X == nil {
		return b.fail(line, "call with no target expression")
	}
	ec := &ExternalCall{Primitive: m.Sel, SuccessVar: successVar, Line: line}
	b.describeTarget(ec, m.X)
	switch m.Sel {
	case "transfer", "send":
		ec.HasValue = true
		// transfer bubbles the failure up; there is no flag to leave
		// unchecked.
		if m.Sel == "transfer" {
			ec.SuccessVar = ""
			ec.PropagatesRevert = true
		}
	default:
		if _, ok := c.Options["value"]; ok {
			ec.HasValue = true
		}
		if g, ok := c.Options["gas"]; ok {
			amount := uint64(0)
			if lit, ok := g.(*ast.Literal); ok {
				if n, err := strconv.ParseUint(lit.Value, 10, 64); err == nil {
					amount = n
				}
			}
			ec.GasArg = &amount
		}
		if len(c.Args) > 0 {
			if lit, ok := c.Args[0].(*ast.Literal); !ok || lit.Value != "" {
				ec.HasSelector = true
			}
		}
	}
	b.emit(ec)
	return nil
}

// describeTarget records where the callee address comes from, which drives
// the external/internal classification.
func (b *funcBuilder) describeTarget(ec *ExternalCall, target ast.Expr) {
	t := unwrapCast(target, b.scope)
	ec.TargetDesc = exprString(t)
	switch x := t.(type) {
	case *ast.Ident:
		if x.Name == "this" {
			ec.TargetIsSelf = true
		} else if b.scope.isStateVar(x.Name) {
			ec.TargetFromStorage = true
		}
	case *ast.Literal:
		if x.Kind == "address" || x.Kind == "number" {
			ec.TargetAddress = x.Value
		}
	case *ast.Member, *ast.Index:
		if base, ok := baseIdent(t); ok && b.scope.isStateVar(base) {
			ec.TargetFromStorage = true
		}
	}
}

// unwrapCast strips payable(...) / address(...) style single-argument casts
// so the underlying target expression is classified, not the cast.
func unwrapCast(e ast.Expr, scope *contractScope) ast.Expr {
	for {
		c, ok := e.(*ast.Call)
		if !ok || len(c.Args) != 1 {
			return e
		}
		id, ok := c.Callee.(*ast.Ident)
		if !ok || scope.funcs[id.Name] {
			return e
		}
		e = c.Args[0]
	}
}

func (b *funcBuilder) syntheticVar() string {
	b.synth++
	return fmt.Sprintf("#ok%d", b.synth)
}

// emitReads emits one StorageRead per distinct state variable read by e.
func (b *funcBuilder) emitReads(e ast.Expr, line int) {
	seen := make(map[string]bool)
	walkExpr(e, func(x ast.Expr) {
		base := ""
		switch n := x.(type) {
		case *ast.Ident:
			base = n.Name
		case *ast.Member:
			if bn, ok := baseIdent(n.X); ok {
				base = bn
			}
		case *ast.Index:
			if bn, ok := baseIdent(n.X); ok {
				base = bn
			}
		}
		if base == "" || seen[base] || !b.scope.isStateVar(base) {
			return
		}
		seen[base] = true
		b.emit(&StorageRead{Var: base, Line: line})
	})
}

func (b *funcBuilder) emitArgReads(args []ast.Expr, line int) {
	for _, a := range args {
		b.emitReads(a, line)
	}
}

func (b *funcBuilder) computePrivileged(fn *ast.Function) bool {
	if fn.Name == "" && !fn.IsFallback {
		// Constructors run once, for the deployer only.
		return true
	}
	for _, s := range b.fn.Entry.Stmts {
		if r, ok := s.(*Require); ok && r.ReadsMsgSender {
			return true
		}
	}
	for _, name := range fn.Modifiers {
		if md := b.scope.modifiers[name]; md != nil && modifierGuardsCaller(md) {
			return true
		}
		// Unresolvable modifiers are assumed non-guarding so attacker reach
		// is never underestimated.
	}
	return false
}

func modifierGuardsCaller(md *ast.Modifier) bool {
	if md.Body == nil {
		return false
	}
	guarded := false
	walkStmts(md.Body, func(s ast.Stmt) {
		es, ok := s.(*ast.ExprStmt)
		if !ok {
			return
		}
		c, ok := es.X.(*ast.Call)
		if !ok || len(c.Args) == 0 {
			return
		}
		if id, ok := c.Callee.(*ast.Ident); ok && id.Name == "require" && readsMsgSender(c.Args[0]) {
			guarded = true
		}
	})
	return guarded
}

// --- expression helpers ---

func walkExpr(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *ast.Member:
		walkExpr(n.X, visit)
	case *ast.Index:
		walkExpr(n.X, visit)
		walkExpr(n.I, visit)
	case *ast.Call:
		walkExpr(n.Callee, visit)
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
		for _, o := range n.Options {
			walkExpr(o, visit)
		}
	case *ast.Assign:
		walkExpr(n.LHS, visit)
		walkExpr(n.RHS, visit)
	case *ast.Binary:
		walkExpr(n.X, visit)
		walkExpr(n.Y, visit)
	case *ast.Unary:
		walkExpr(n.X, visit)
	case *ast.Tuple:
		for _, el := range n.Elems {
			walkExpr(el, visit)
		}
	}
}

func walkStmts(b *ast.Block, visit func(ast.Stmt)) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		visit(s)
		switch n := s.(type) {
		case *ast.If:
			walkStmts(n.Then, visit)
			walkStmts(n.Else, visit)
		case *ast.For:
			walkStmts(n.Body, visit)
		case *ast.While:
			walkStmts(n.Body, visit)
		}
	}
}

// baseIdent resolves the root identifier of an lvalue-ish chain
// (a, a.b, a[i].c ...).
func baseIdent(e ast.Expr) (string, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name, true
	case *ast.Member:
		return baseIdent(n.X)
	case *ast.Index:
		return baseIdent(n.X)
	}
	return "", false
}

func identsIn(e ast.Expr) []string {
	var out []string
	seen := make(map[string]bool)
	walkExpr(e, func(x ast.Expr) {
		if id, ok := x.(*ast.Ident); ok && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
	})
	return out
}

func readsMsgSender(e ast.Expr) bool {
	found := false
	walkExpr(e, func(x ast.Expr) {
		m, ok := x.(*ast.Member)
		if !ok || m.Sel != "sender" {
			return
		}
		if id, ok := m.X.(*ast.Ident); ok && id.Name == "msg" {
			found = true
		}
	})
	return found
}

func exprString(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.Member:
		return exprString(n.X) + "." + n.Sel
	case *ast.Index:
		return exprString(n.X) + "[" + exprString(n.I) + "]"
	case *ast.Call:
		return exprString(n.Callee) + "(...)"
	case *ast.Literal:
		return n.Value
	case nil:
		return ""
	default:
		return "<expr>"
	}
}

func firstName(names []string) string {
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return ""
}
