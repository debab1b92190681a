// Package env holds the global declarations an elaboration session consults:
// constants with their types and values, reducibility attributes and the set of
// declarations registered as type classes.
//
// An Environment is immutable. Adding a declaration returns a new Environment
// that shares structure with the old one, so a session may extend its own copy
// without affecting anyone else holding the previous value.
package env

import (
	"fmt"
	"sort"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/pmap"
)

// ConstantKind is the sort of global declaration.
type ConstantKind uint8

const (
	AxiomKind ConstantKind = iota
	DefnKind
	TheoremKind
	OpaqueKind
	InductiveKind
	CtorKind
)

var constantKindNames = map[ConstantKind]string{
	AxiomKind:     "axiom",
	DefnKind:      "def",
	TheoremKind:   "theorem",
	OpaqueKind:    "opaque",
	InductiveKind: "inductive",
	CtorKind:      "ctor",
}

func (k ConstantKind) String() string { return constantKindNames[k] }

// ParseConstantKind is the inverse of String.
func ParseConstantKind(s string) (ConstantKind, bool) {
	for k, n := range constantKindNames {
		if n == s {
			return k, true
		}
	}
	return AxiomKind, false
}

// ReducibilityStatus is the unfolding attribute of a definition.
type ReducibilityStatus uint8

const (
	Regular ReducibilityStatus = iota
	Reducible
	Irreducible
)

func (r ReducibilityStatus) String() string {
	switch r {
	case Reducible:
		return "reducible"
	case Irreducible:
		return "irreducible"
	}
	return "regular"
}

// ParseReducibility accepts "", "regular", "reducible" and "irreducible".
func ParseReducibility(s string) (ReducibilityStatus, bool) {
	switch s {
	case "", "regular":
		return Regular, true
	case "reducible":
		return Reducible, true
	case "irreducible":
		return Irreducible, true
	}
	return Regular, false
}

// ConstantInfo is one global declaration.
type ConstantInfo struct {
	Name        expr.Name
	LevelParams []expr.Name
	Type        expr.Expr
	Value       expr.Expr // nil unless Kind is DefnKind or TheoremKind
	Kind        ConstantKind
}

// HasValue reports whether the constant can be delta-unfolded at all.
func (c *ConstantInfo) HasValue() bool {
	return c.Value != nil && (c.Kind == DefnKind || c.Kind == TheoremKind)
}

// InstantiateType returns the type with us substituted for the level parameters.
func (c *ConstantInfo) InstantiateType(us []expr.Level) expr.Expr {
	return expr.InstantiateLevelParamsExpr(c.Type, c.LevelParams, us)
}

// InstantiateValue returns the value with us substituted for the level parameters.
func (c *ConstantInfo) InstantiateValue(us []expr.Level) expr.Expr {
	if c.Value == nil {
		return nil
	}
	return expr.InstantiateLevelParamsExpr(c.Value, c.LevelParams, us)
}

// DeclError reports an invalid environment extension.
type DeclError struct {
	Name   expr.Name
	Reason string
}

func (e *DeclError) Error() string {
	return fmt.Sprintf("declaration '%s': %s", e.Name, e.Reason)
}

type (
	constMap = pmap.Map[expr.Name, *ConstantInfo, pmap.Str[expr.Name]]
	redMap   = pmap.Map[expr.Name, ReducibilityStatus, pmap.Str[expr.Name]]
	classMap = pmap.Map[expr.Name, struct{}, pmap.Str[expr.Name]]
)

// Environment is a persistent table of declarations.
type Environment struct {
	constants    *constMap
	reducibility *redMap
	classes      *classMap
}

// Empty returns an environment without declarations.
func Empty() *Environment {
	return &Environment{
		constants:    pmap.New[expr.Name, *ConstantInfo, pmap.Str[expr.Name]](),
		reducibility: pmap.New[expr.Name, ReducibilityStatus, pmap.Str[expr.Name]](),
		classes:      pmap.New[expr.Name, struct{}, pmap.Str[expr.Name]](),
	}
}

// Find looks a constant up by name.
func (e *Environment) Find(n expr.Name) (*ConstantInfo, bool) {
	return e.constants.Get(n)
}

// Contains reports whether n is declared.
func (e *Environment) Contains(n expr.Name) bool { return e.constants.Contains(n) }

// NumConstants is the number of declarations.
func (e *Environment) NumConstants() int { return e.constants.Len() }

// Constants returns every declaration sorted by name.
func (e *Environment) Constants() []*ConstantInfo {
	out := make([]*ConstantInfo, 0, e.constants.Len())
	e.constants.Range(func(_ expr.Name, c *ConstantInfo) bool {
		out = append(out, c)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddDecl returns an environment extended with c. Names must be fresh.
func (e *Environment) AddDecl(c *ConstantInfo) (*Environment, error) {
	if c.Name.IsAnonymous() {
		return e, &DeclError{Name: c.Name, Reason: "anonymous declaration"}
	}
	if e.Contains(c.Name) {
		return e, &DeclError{Name: c.Name, Reason: "already declared"}
	}
	if c.Type == nil {
		return e, &DeclError{Name: c.Name, Reason: "missing type"}
	}
	if (c.Kind == DefnKind || c.Kind == TheoremKind) && c.Value == nil {
		return e, &DeclError{Name: c.Name, Reason: fmt.Sprintf("%s without a value", c.Kind)}
	}
	return &Environment{
		constants:    e.constants.Put(c.Name, c),
		reducibility: e.reducibility,
		classes:      e.classes,
	}, nil
}

// SetReducibility attaches an unfolding attribute to a declared constant.
func (e *Environment) SetReducibility(n expr.Name, r ReducibilityStatus) (*Environment, error) {
	if !e.Contains(n) {
		return e, &DeclError{Name: n, Reason: "unknown constant"}
	}
	red := e.reducibility
	if r == Regular {
		red = red.Remove(n)
	} else {
		red = red.Put(n, r)
	}
	return &Environment{constants: e.constants, reducibility: red, classes: e.classes}, nil
}

// GetReducibility returns the unfolding attribute of n (Regular when unset).
func (e *Environment) GetReducibility(n expr.Name) ReducibilityStatus {
	r, _ := e.reducibility.Get(n)
	return r
}

// AddClass registers a declared constant as a type class.
func (e *Environment) AddClass(n expr.Name) (*Environment, error) {
	if !e.Contains(n) {
		return e, &DeclError{Name: n, Reason: "unknown constant"}
	}
	return &Environment{constants: e.constants, reducibility: e.reducibility, classes: e.classes.Put(n, struct{}{})}, nil
}

// IsClass reports whether n is registered as a type class.
func (e *Environment) IsClass(n expr.Name) bool { return e.classes.Contains(n) }

// Classes returns the registered class names, sorted.
func (e *Environment) Classes() []expr.Name {
	out := e.classes.Keys()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
