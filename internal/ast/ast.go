// Package ast defines the contract syntax tree handed to the analyzer by the
// external parsing collaborator. The analyzer never parses Solidity text
// itself; adapters in internal/solidity produce these nodes.
package ast

// SourceUnit is one parsed source file.
type SourceUnit struct {
	Path      string
	Contracts []*Contract
}

type Contract struct {
	Name      string
	Line      int
	StateVars []*StateVar
	Functions []*Function
	Modifiers []*Modifier
}

type TypeKind int

const (
	TypeElementary TypeKind = iota
	TypeMapping
	TypeDynamicArray
	TypeFixedArray
)

type TypeName struct {
	Kind TypeKind
	// Name is the elementary type or element type as written ("uint256",
	// "address payable"). Informational only.
	Name string
	// Size is the declared length for fixed arrays.
	Size int
}

type StateVar struct {
	Name string
	Type TypeName
	Line int
}

type Function struct {
	Name       string
	Visibility string // public | external | internal | private
	Mutability string // pure | view | payable | nonpayable
	// Params lists the declared parameter types; overloads share a name and
	// differ only here.
	Params    []string
	Modifiers []string
	Body      *Block
	Line      int
	// IsFallback covers fallback and receive declarations, which have no name.
	IsFallback bool
}

// Modifier is a modifier definition; only its body's entry requires matter to
// the privileged-caller check.
type Modifier struct {
	Name string
	Body *Block
	Line int
}

type Block struct {
	Stmts []Stmt
}

// Stmt is implemented by every statement node.
type Stmt interface {
	stmtNode()
	Pos() int
}

type (
	// ExprStmt is a bare expression statement (calls, assignments, push).
	ExprStmt struct {
		X    Expr
		Line int
	}

	// VarDecl declares one or more local variables, e.g.
	// (bool sent, ) = addr.call{value: v}("").
	VarDecl struct {
		Names []string // empty string for omitted tuple slots
		Value Expr
		Line  int
	}

	If struct {
		Cond Expr
		Then *Block
		Else *Block // nil when absent
		Line int
	}

	For struct {
		Init Stmt // nil when absent
		Cond Expr // nil means unconditional
		Post Stmt
		Body *Block
		Line int
	}

	While struct {
		Cond Expr
		Body *Block
		Line int
	}

	Return struct {
		Value Expr // nil for bare return
		Line  int
	}
)

func (*ExprStmt) stmtNode() {}
func (*VarDecl) stmtNode()  {}
func (*If) stmtNode()       {}
func (*For) stmtNode()      {}
func (*While) stmtNode()    {}
func (*Return) stmtNode()   {}

func (s *ExprStmt) Pos() int { return s.Line }
func (s *VarDecl) Pos() int  { return s.Line }
func (s *If) Pos() int       { return s.Line }
func (s *For) Pos() int      { return s.Line }
func (s *While) Pos() int    { return s.Line }
func (s *Return) Pos() int   { return s.Line }

// Expr is implemented by every expression node.
type Expr interface {
	exprNode()
}

type (
	Ident struct {
		Name string
	}

	// Member is field/method selection: X.Sel (addr.call, arr.length,
	// msg.sender).
	Member struct {
		X   Expr
		Sel string
	}

	Index struct {
		X Expr
		I Expr
	}

	// Call is a function call. Options carries Solidity call options
	// ({value: ..., gas: ...}) when present.
	Call struct {
		Callee  Expr
		Args    []Expr
		Options map[string]Expr
	}

	// Assign covers = and compound assignments (+=, -=, ...).
	Assign struct {
		Op  string
		LHS Expr
		RHS Expr
	}

	Binary struct {
		Op string
		X  Expr
		Y  Expr
	}

	Unary struct {
		Op string
		X  Expr
	}

	Literal struct {
		Kind  string // number | string | bool | address
		Value string
	}

	Tuple struct {
		Elems []Expr
	}
)

func (*Ident) exprNode()   {}
func (*Member) exprNode()  {}
func (*Index) exprNode()   {}
func (*Call) exprNode()    {}
func (*Assign) exprNode()  {}
func (*Binary) exprNode()  {}
func (*Unary) exprNode()   {}
func (*Literal) exprNode() {}
func (*Tuple) exprNode()   {}
