package reduce

import (
	"github.com/funvibe/metakernel/internal/env"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

// Whnf reduces e to weak head normal form at the transparency of m.
// Every delta step counts against the recursion limit.
func Whnf(m *meta.Meta, e expr.Expr) (expr.Expr, error) {
	for {
		r, err := whnfCore(m, e)
		if err != nil {
			return nil, err
		}
		u, ok := unfoldDefinition(m, r)
		if !ok {
			return r, nil
		}
		if m, err = m.WithIncRecDepth(); err != nil {
			return nil, err
		}
		e = u
	}
}

// whnfCore performs every step except delta: metadata, assigned
// metavariables, let-bound free variables, let and beta. Beta steps count
// against the recursion limit.
func whnfCore(m *meta.Meta, e expr.Expr) (expr.Expr, error) {
	for {
		switch x := e.(type) {
		case *expr.MData:
			e = x.Expr
			continue
		case *expr.MVar:
			v, ok := m.MCtx().GetExprAssignment(x.ID)
			if !ok {
				return e, nil
			}
			e = v
			continue
		case *expr.FVar:
			d, err := m.GetLocalDecl(x.ID)
			if err != nil {
				return nil, err
			}
			if !d.IsLet() {
				return e, nil
			}
			e = d.Value
			continue
		case *expr.Let:
			e = expr.Instantiate1(x.Body, x.Value)
			continue
		case *expr.App:
			f := expr.GetAppFn(e)
			fw, err := whnfCore(m, f)
			if err != nil {
				return nil, err
			}
			if _, ok := fw.(*expr.Lam); ok {
				if m, err = m.WithIncRecDepth(); err != nil {
					return nil, err
				}
				e = expr.Beta(fw, expr.GetAppArgs(e))
				continue
			}
			if mv, ok := fw.(*expr.MVar); ok && m.MCtx().IsDelayedAssigned(mv.ID) {
				// Delayed assignments only unfold through instantiation.
				r := m.InstantiateMVars(expr.MkAppN(fw, expr.GetAppArgs(e)...))
				if h, ok := expr.GetAppFn(r).(*expr.MVar); ok && h.ID == mv.ID {
					return r, nil
				}
				e = r
				continue
			}
			if fw == f {
				return e, nil
			}
			return expr.MkAppN(fw, expr.GetAppArgs(e)...), nil
		}
		return e, nil
	}
}

// canUnfold decides delta steps by transparency and reducibility.
func canUnfold(m *meta.Meta, c *env.ConstantInfo) bool {
	if !c.HasValue() {
		return false
	}
	mode := m.Config().Transparency
	if c.Kind == env.TheoremKind {
		return mode == meta.TransparencyAll
	}
	switch mode {
	case meta.TransparencyAll:
		return true
	case meta.TransparencyDefault:
		return m.Env().GetReducibility(c.Name) != env.Irreducible
	}
	return m.Env().GetReducibility(c.Name) == env.Reducible
}

func unfoldDefinition(m *meta.Meta, e expr.Expr) (expr.Expr, bool) {
	c, ok := expr.GetAppFn(e).(*expr.Const)
	if !ok {
		return nil, false
	}
	info, ok := m.Env().Find(c.Name)
	if !ok || !canUnfold(m, info) || len(c.Levels) != len(info.LevelParams) {
		return nil, false
	}
	return expr.Beta(info.InstantiateValue(c.Levels), expr.GetAppArgs(e)), true
}
