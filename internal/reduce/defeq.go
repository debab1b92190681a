package reduce

import (
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

// IsDefEq decides a =?= b first-order: assignable metavariables are solved
// by direct assignment, applications are compared argument-wise, and when
// the structure differs both sides are put in whnf and compared again.
func IsDefEq(m *meta.Meta, a, b expr.Expr) (bool, error) {
	a, b = m.InstantiateMVars(a), m.InstantiateMVars(b)
	if expr.Equal(a, b) {
		return true, nil
	}
	if ok, done, err := assignEither(m, a, b); done || err != nil {
		return ok, err
	}
	if a.Kind() == b.Kind() {
		ok, err := m.CommitWhen(func(m *meta.Meta) (bool, error) {
			return isDefEqStructural(m, a, b)
		})
		if err != nil || ok {
			return ok, err
		}
	}
	if ok, done, err := isDefEqEta(m, a, b); done || err != nil {
		return ok, err
	}
	if ok, done, err := isDefEqEta(m, b, a); done || err != nil {
		return ok, err
	}
	aw, err := m.Whnf(a)
	if err != nil {
		return false, err
	}
	bw, err := m.Whnf(b)
	if err != nil {
		return false, err
	}
	if expr.Equal(aw, a) && expr.Equal(bw, b) {
		return false, nil
	}
	return m.IsExprDefEq(aw, bw)
}

func assignEither(m *meta.Meta, a, b expr.Expr) (ok, done bool, err error) {
	if mv, isMVar := a.(*expr.MVar); isMVar && !m.IsReadOnlyExprMVar(mv.ID) {
		return assign(m, mv, b)
	}
	if mv, isMVar := b.(*expr.MVar); isMVar && !m.IsReadOnlyExprMVar(mv.ID) {
		return assign(m, mv, a)
	}
	return false, false, nil
}

// assign solves ?m =?= v when v only mentions variables visible to ?m.
func assign(m *meta.Meta, mv *expr.MVar, v expr.Expr) (ok, done bool, err error) {
	if m.MCtx().OccursIn(mv.ID, v) {
		return false, true, nil
	}
	d, err := m.GetMVarDecl(mv.ID)
	if err != nil {
		return false, true, err
	}
	for _, id := range expr.CollectFVars(v) {
		if !d.LCtx.Contains(id) {
			return false, false, nil
		}
	}
	if err := m.AssignExprMVar(mv.ID, v); err != nil {
		return false, true, err
	}
	return true, true, nil
}

func isDefEqStructural(m *meta.Meta, a, b expr.Expr) (bool, error) {
	switch x := a.(type) {
	case *expr.Sort:
		return m.IsLevelDefEq(x.Level, b.(*expr.Sort).Level)
	case *expr.Const:
		y := b.(*expr.Const)
		if x.Name != y.Name {
			return false, nil
		}
		return m.IsLevelsDefEq(x.Levels, y.Levels)
	case *expr.App:
		xs, ys := expr.GetAppArgs(a), expr.GetAppArgs(b)
		if len(xs) != len(ys) {
			return false, nil
		}
		ok, err := m.IsExprDefEq(expr.GetAppFn(a), expr.GetAppFn(b))
		if err != nil || !ok {
			return false, err
		}
		for i := range xs {
			ok, err := m.IsExprDefEq(xs[i], ys[i])
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *expr.Lam:
		y := b.(*expr.Lam)
		return isDefEqBinding(m, x.Binding, y.Binding)
	case *expr.Pi:
		y := b.(*expr.Pi)
		return isDefEqBinding(m, x.Binding, y.Binding)
	case *expr.Proj:
		y := b.(*expr.Proj)
		if x.Idx != y.Idx {
			return false, nil
		}
		return m.IsExprDefEq(x.Expr, y.Expr)
	}
	return false, nil
}

func isDefEqBinding(m *meta.Meta, a, b expr.Binding) (bool, error) {
	ok, err := m.IsExprDefEq(a.BinderType, b.BinderType)
	if err != nil || !ok {
		return false, err
	}
	return meta.WithLocalDecl(m, a.BinderName, a.Info, a.BinderType, func(m *meta.Meta, x expr.Expr) (bool, error) {
		return m.IsExprDefEq(expr.Instantiate1(a.Body, x), expr.Instantiate1(b.Body, x))
	})
}

// isDefEqEta checks (fun x => f x) =?= f when only a is a lambda.
func isDefEqEta(m *meta.Meta, a, b expr.Expr) (ok, done bool, err error) {
	lam, isLam := a.(*expr.Lam)
	if !isLam || b.Kind() == expr.LamKind {
		return false, false, nil
	}
	ok, err = meta.WithLocalDecl(m, lam.BinderName, lam.Info, lam.BinderType, func(m *meta.Meta, x expr.Expr) (bool, error) {
		return m.IsExprDefEq(expr.Instantiate1(lam.Body, x), expr.MkApp(b, x))
	})
	return ok, ok || err != nil, err
}
