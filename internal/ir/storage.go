package ir

import "github.com/xab-mack/dosguard/internal/ast"

type VarKind int

const (
	VarScalar VarKind = iota
	VarMapping
	VarDynamicArray
	VarFixedArray
)

func (k VarKind) String() string {
	switch k {
	case VarMapping:
		return "mapping"
	case VarDynamicArray:
		return "dynamic_array"
	case VarFixedArray:
		return "fixed_array"
	default:
		return "scalar"
	}
}

// StorageVariable aggregates cross-function facts about one state variable.
// The table is populated once in phase 1 and read-only afterwards.
type StorageVariable struct {
	Name     string
	Kind     VarKind
	Mutators []string
	// GrowableBy lists functions that append to the variable (dynamic arrays
	// only). UnprivilegedGrowers is the subset reachable by an arbitrary
	// caller without a structural caller guard.
	GrowableBy          []string
	UnprivilegedGrowers []string
}

type StorageTable struct {
	Vars  []*StorageVariable
	index map[string]*StorageVariable
}

func (t *StorageTable) Lookup(name string) *StorageVariable {
	if t == nil {
		return nil
	}
	return t.index[name]
}

// NewStorageTable assembles a table from pre-computed variables.
func NewStorageTable(vars ...*StorageVariable) *StorageTable {
	t := &StorageTable{index: make(map[string]*StorageVariable, len(vars))}
	for _, v := range vars {
		t.Vars = append(t.Vars, v)
		t.index[v.Name] = v
	}
	return t
}

func varKind(tn ast.TypeName) VarKind {
	switch tn.Kind {
	case ast.TypeMapping:
		return VarMapping
	case ast.TypeDynamicArray:
		return VarDynamicArray
	case ast.TypeFixedArray:
		return VarFixedArray
	default:
		return VarScalar
	}
}

// buildStorageTable walks the already-built function CFGs and records, per
// state variable, which functions mutate it and which append to it.
func buildStorageTable(decl []*ast.StateVar, funcs []*Function) *StorageTable {
	t := &StorageTable{index: make(map[string]*StorageVariable, len(decl))}
	for _, sv := range decl {
		v := &StorageVariable{Name: sv.Name, Kind: varKind(sv.Type)}
		t.Vars = append(t.Vars, v)
		t.index[sv.Name] = v
	}
	for _, fn := range funcs {
		seenWrite := make(map[string]bool)
		seenGrow := make(map[string]bool)
		for _, b := range fn.Blocks {
			for _, s := range b.Stmts {
				w, ok := s.(*StorageWrite)
				if !ok {
					continue
				}
				v := t.index[w.Var]
				if v == nil {
					continue
				}
				if !seenWrite[w.Var] {
					seenWrite[w.Var] = true
					v.Mutators = append(v.Mutators, fn.Name)
				}
				if w.Append && v.Kind == VarDynamicArray && !seenGrow[w.Var] {
					seenGrow[w.Var] = true
					v.GrowableBy = append(v.GrowableBy, fn.Name)
					if fn.ExternallyCallable() && !fn.Privileged {
						v.UnprivilegedGrowers = append(v.UnprivilegedGrowers, fn.Name)
					}
				}
			}
		}
	}
	return t
}
