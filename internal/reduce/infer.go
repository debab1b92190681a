package reduce

import (
	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

// InferType computes the type of e structurally. It does not check that e is
// well typed.
func InferType(m *meta.Meta, e expr.Expr) (expr.Expr, error) {
	switch x := e.(type) {
	case *expr.BVar:
		return nil, m.Throwf(meta.KindOther, "unexpected bound variable #%d", x.Idx)
	case *expr.FVar:
		d, err := m.GetLocalDecl(x.ID)
		if err != nil {
			return nil, err
		}
		return d.Type, nil
	case *expr.MVar:
		d, err := m.GetMVarDecl(x.ID)
		if err != nil {
			return nil, err
		}
		return d.Type, nil
	case *expr.Local:
		return x.Type, nil
	case *expr.Sort:
		return expr.MkSort(expr.MkLevelSucc(x.Level)), nil
	case *expr.Const:
		info, err := m.GetConstInfo(x.Name)
		if err != nil {
			return nil, err
		}
		if len(x.Levels) != len(info.LevelParams) {
			return nil, m.Throwf(meta.KindOther, "incorrect number of universe levels for '%s', expected %d",
				string(x.Name), len(info.LevelParams))
		}
		return info.InstantiateType(x.Levels), nil
	case *expr.Lit:
		if x.LitKind == expr.NatLit {
			return expr.MkConst(config.NatTypeName), nil
		}
		return expr.MkConst(config.StringTypeName), nil
	case *expr.MData:
		return m.InferType(x.Expr)
	case *expr.Let:
		return m.InferType(expr.Instantiate1(x.Body, x.Value))
	case *expr.App:
		ft, err := m.InferType(expr.GetAppFn(e))
		if err != nil {
			return nil, err
		}
		return m.InstantiateForall(ft, expr.GetAppArgs(e))
	case *expr.Lam:
		return meta.LambdaTelescope(m, e, func(m *meta.Meta, xs []expr.Expr, body expr.Expr) (expr.Expr, error) {
			t, err := m.InferType(body)
			if err != nil {
				return nil, err
			}
			return m.MkForallFVars(xs, t)
		})
	case *expr.Pi:
		return meta.ForallTelescope(m, e, func(m *meta.Meta, xs []expr.Expr, body expr.Expr) (expr.Expr, error) {
			u, err := getLevel(m, body)
			if err != nil {
				return nil, err
			}
			for i := len(xs) - 1; i >= 0; i-- {
				d, err := m.GetFVarLocalDecl(xs[i])
				if err != nil {
					return nil, err
				}
				ui, err := getLevel(m, d.Type)
				if err != nil {
					return nil, err
				}
				u = expr.MkLevelIMaxSimp(ui, u)
			}
			return expr.MkSort(u), nil
		})
	case *expr.Proj:
		return nil, m.Throwf(meta.KindOther, "cannot infer the type of projection %s", e)
	}
	return nil, m.Throwf(meta.KindOther, "cannot infer the type of %s", e)
}

// getLevel returns u such that t : Sort u.
func getLevel(m *meta.Meta, t expr.Expr) (expr.Level, error) {
	tt, err := m.InferType(t)
	if err != nil {
		return nil, err
	}
	tt, err = m.WhnfD(tt)
	if err != nil {
		return nil, err
	}
	switch s := tt.(type) {
	case *expr.Sort:
		return s.Level, nil
	case *expr.MVar:
		if !m.IsReadOnlyExprMVar(s.ID) {
			u := m.MkFreshLevelMVar()
			if err := m.AssignExprMVar(s.ID, expr.MkSort(u)); err != nil {
				return nil, err
			}
			return u, nil
		}
	}
	return nil, m.Throwf(meta.KindOther, "type expected, got %s", t)
}
