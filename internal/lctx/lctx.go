package lctx

import (
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/pmap"
)

// DeclKind distinguishes plain and let-bound declarations.
type DeclKind uint8

const (
	CDecl DeclKind = iota // plain declaration (x : T)
	LDecl                 // let declaration (x : T := v)
)

// LocalDecl is one entry of a LocalContext.
type LocalDecl struct {
	Kind       DeclKind
	Index      int
	FVarID     expr.FVarID
	UserName   expr.Name
	Type       expr.Expr
	Value      expr.Expr // nil for CDecl
	BinderInfo expr.BinderInfo
	NonDep     bool
}

func (d *LocalDecl) IsLet() bool { return d.Kind == LDecl }

// ToExpr returns the free variable standing for this declaration.
func (d *LocalDecl) ToExpr() expr.Expr { return expr.MkFVar(d.FVarID) }

type (
	declsByID    = pmap.Map[expr.FVarID, *LocalDecl, pmap.Str[expr.FVarID]]
	declsByIndex = pmap.Map[int, *LocalDecl, pmap.Int[int]]
)

// LocalContext is an ordered, persistent collection of local declarations.
// Every update returns a new context; old values stay valid snapshots.
type LocalContext struct {
	byID    *declsByID
	byIndex *declsByIndex
	size    int // next declaration index
}

// Empty returns a context with no declarations.
func Empty() *LocalContext {
	return &LocalContext{byID: pmap.New[expr.FVarID, *LocalDecl, pmap.Str[expr.FVarID]](), byIndex: pmap.New[int, *LocalDecl, pmap.Int[int]]()}
}

// IsEmpty reports whether the context has no live declarations.
func (l *LocalContext) IsEmpty() bool { return l.byID.Len() == 0 }

// NumIndices is one more than the largest index ever used.
func (l *LocalContext) NumIndices() int { return l.size }

// Len is the number of live declarations.
func (l *LocalContext) Len() int { return l.byID.Len() }

func (l *LocalContext) add(d *LocalDecl) *LocalContext {
	return &LocalContext{
		byID:    l.byID.Put(d.FVarID, d),
		byIndex: l.byIndex.Put(d.Index, d),
		size:    l.size + 1,
	}
}

// MkLocalDecl appends a plain declaration.
func (l *LocalContext) MkLocalDecl(id expr.FVarID, userName expr.Name, t expr.Expr, bi expr.BinderInfo) *LocalContext {
	return l.add(&LocalDecl{Kind: CDecl, Index: l.size, FVarID: id, UserName: userName, Type: t, BinderInfo: bi})
}

// MkLetDecl appends a let declaration.
func (l *LocalContext) MkLetDecl(id expr.FVarID, userName expr.Name, t, v expr.Expr, nonDep bool) *LocalContext {
	return l.add(&LocalDecl{Kind: LDecl, Index: l.size, FVarID: id, UserName: userName, Type: t, Value: v, NonDep: nonDep})
}

// Find looks a declaration up by id.
func (l *LocalContext) Find(id expr.FVarID) (*LocalDecl, bool) {
	return l.byID.Get(id)
}

// FindFVar looks up the declaration of an FVar expression.
func (l *LocalContext) FindFVar(e expr.Expr) (*LocalDecl, bool) {
	fv, ok := e.(*expr.FVar)
	if !ok {
		return nil, false
	}
	return l.Find(fv.ID)
}

// Contains reports whether id is declared.
func (l *LocalContext) Contains(id expr.FVarID) bool { return l.byID.Contains(id) }

// FindFromUserName returns the most recent declaration with the given user name.
func (l *LocalContext) FindFromUserName(n expr.Name) (*LocalDecl, bool) {
	for i := l.size - 1; i >= 0; i-- {
		if d, ok := l.byIndex.Get(i); ok && d.UserName == n {
			return d, true
		}
	}
	return nil, false
}

// Erase removes a declaration. Indices of the others are unchanged.
func (l *LocalContext) Erase(id expr.FVarID) *LocalContext {
	d, ok := l.Find(id)
	if !ok {
		return l
	}
	return &LocalContext{byID: l.byID.Remove(id), byIndex: l.byIndex.Remove(d.Index), size: l.size}
}

// ModifyType replaces the type of a declaration.
func (l *LocalContext) ModifyType(id expr.FVarID, t expr.Expr) *LocalContext {
	d, ok := l.Find(id)
	if !ok {
		return l
	}
	nd := *d
	nd.Type = t
	return &LocalContext{byID: l.byID.Put(id, &nd), byIndex: l.byIndex.Put(nd.Index, &nd), size: l.size}
}

// ForEachFrom visits live declarations with index >= start in order, until f returns false.
func (l *LocalContext) ForEachFrom(start int, f func(*LocalDecl) bool) {
	for i := start; i < l.size; i++ {
		if d, ok := l.byIndex.Get(i); ok {
			if !f(d) {
				return
			}
		}
	}
}

// Decls returns the live declarations in order.
func (l *LocalContext) Decls() []*LocalDecl {
	decls := make([]*LocalDecl, 0, l.Len())
	l.ForEachFrom(0, func(d *LocalDecl) bool {
		decls = append(decls, d)
		return true
	})
	return decls
}

// FVars returns the free variables of all live declarations in order.
func (l *LocalContext) FVars() []expr.Expr {
	decls := l.Decls()
	xs := make([]expr.Expr, len(decls))
	for i, d := range decls {
		xs[i] = d.ToExpr()
	}
	return xs
}

// Any reports whether some declaration of xs is present.
func (l *LocalContext) Any(xs []expr.Expr) bool {
	for _, x := range xs {
		if fv, ok := x.(*expr.FVar); ok && l.Contains(fv.ID) {
			return true
		}
	}
	return false
}

// IsSubPrefixOf reports whether every declaration of l also appears in other,
// with the same index.
func (l *LocalContext) IsSubPrefixOf(other *LocalContext) bool {
	ok := true
	l.byID.Range(func(id expr.FVarID, d *LocalDecl) bool {
		od, found := other.Find(id)
		if !found || od.Index != d.Index {
			ok = false
		}
		return ok
	})
	return ok
}

// UserNameOf resolves display names, usable as an expr.NameResolver.
func (l *LocalContext) UserNameOf(id expr.FVarID) (expr.Name, bool) {
	d, ok := l.Find(id)
	if !ok {
		return expr.Anonymous, false
	}
	return d.UserName, true
}

// MkBinding abstracts xs over e without any metavariable handling. xs must be
// declared in l in dependency order.
func (l *LocalContext) MkBinding(isLambda bool, xs []expr.Expr, e expr.Expr) expr.Expr {
	b := expr.Abstract(e, xs)
	for i := len(xs) - 1; i >= 0; i-- {
		d, ok := l.FindFVar(xs[i])
		if !ok {
			continue
		}
		t := expr.AbstractRange(d.Type, i, xs)
		switch {
		case d.IsLet():
			b = expr.MkLet(d.UserName, t, expr.AbstractRange(d.Value, i, xs), b, d.NonDep)
		case isLambda:
			b = expr.MkLambda(d.UserName, d.BinderInfo, t, b)
		default:
			b = expr.MkForall(d.UserName, d.BinderInfo, t, b)
		}
	}
	return b
}
