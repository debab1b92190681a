package mctx

import "github.com/funvibe/metakernel/internal/expr"

// InstantiateLevelMVars replaces assigned universe metavariables in l.
func (m MetavarContext) InstantiateLevelMVars(l expr.Level) expr.Level {
	if !l.HasMVar() {
		return l
	}
	return expr.ReplaceLevel(l, func(x expr.Level) (expr.Level, bool) {
		if !x.HasMVar() {
			return x, true
		}
		if mv, ok := x.(*expr.LevelMVar); ok {
			if v, ok := m.GetLevelAssignment(mv.ID); ok {
				return m.InstantiateLevelMVars(v), true
			}
			return x, true
		}
		return nil, false
	})
}

// InstantiateMVars replaces every assigned metavariable of e by its (instantiated)
// value. A delayed-assigned head applied to enough arguments is unfolded once its
// pending metavariable is fully assigned. The context is not modified.
func (m MetavarContext) InstantiateMVars(e expr.Expr) expr.Expr {
	if !expr.HasMVar(e) {
		return e
	}
	in := instantiator{m: m, cache: make(map[expr.Expr]expr.Expr)}
	return in.visit(e)
}

type instantiator struct {
	m     MetavarContext
	cache map[expr.Expr]expr.Expr
}

func (in *instantiator) levels(ls []expr.Level) ([]expr.Level, bool) {
	changed := false
	out := make([]expr.Level, len(ls))
	for i, l := range ls {
		out[i] = in.m.InstantiateLevelMVars(l)
		changed = changed || out[i] != l
	}
	return out, changed
}

func (in *instantiator) visit(e expr.Expr) expr.Expr {
	if !expr.HasMVar(e) {
		return e
	}
	if r, ok := in.cache[e]; ok {
		return r
	}
	r := in.visitNoCache(e)
	in.cache[e] = r
	return r
}

func (in *instantiator) visitNoCache(e expr.Expr) expr.Expr {
	switch x := e.(type) {
	case *expr.Sort:
		l := in.m.InstantiateLevelMVars(x.Level)
		if l == x.Level {
			return e
		}
		return expr.MkSort(l)
	case *expr.Const:
		ls, changed := in.levels(x.Levels)
		if !changed {
			return e
		}
		return expr.MkConst(x.Name, ls...)
	case *expr.MVar:
		if v, ok := in.m.GetExprAssignment(x.ID); ok {
			return in.visit(v)
		}
		return e
	case *expr.App:
		return in.visitApp(x)
	case *expr.Lam:
		t, b := in.visit(x.BinderType), in.visit(x.Body)
		if t == x.BinderType && b == x.Body {
			return e
		}
		return expr.MkLambda(x.BinderName, x.Info, t, b)
	case *expr.Pi:
		t, b := in.visit(x.BinderType), in.visit(x.Body)
		if t == x.BinderType && b == x.Body {
			return e
		}
		return expr.MkForall(x.BinderName, x.Info, t, b)
	case *expr.Let:
		t, v, b := in.visit(x.Type), in.visit(x.Value), in.visit(x.Body)
		if t == x.Type && v == x.Value && b == x.Body {
			return e
		}
		return expr.MkLet(x.Name, t, v, b, x.NonDep)
	case *expr.MData:
		inner := in.visit(x.Expr)
		if inner == x.Expr {
			return e
		}
		return expr.MkMData(x.Data, inner)
	case *expr.Proj:
		inner := in.visit(x.Expr)
		if inner == x.Expr {
			return e
		}
		return expr.MkProj(x.Struct, x.Idx, inner)
	case *expr.Local:
		t := in.visit(x.Type)
		if t == x.Type {
			return e
		}
		return expr.MkLocal(x.ID, x.UserName, t, x.Info)
	}
	return e
}

func (in *instantiator) visitArgs(args []expr.Expr) []expr.Expr {
	out := make([]expr.Expr, len(args))
	for i, a := range args {
		out[i] = in.visit(a)
	}
	return out
}

func (in *instantiator) visitApp(app *expr.App) expr.Expr {
	f := expr.GetAppFn(app)
	mv, ok := f.(*expr.MVar)
	if !ok {
		fn, arg := in.visit(app.Fn), in.visit(app.Arg)
		if fn == app.Fn && arg == app.Arg {
			return app
		}
		return expr.MkApp(fn, arg)
	}
	args := in.visitArgs(expr.GetAppArgs(app))
	if v, ok := in.m.GetExprAssignment(mv.ID); ok {
		return expr.HeadBeta(expr.Beta(in.visit(v), args))
	}
	if d, ok := in.m.GetDelayedAssignment(mv.ID); ok && len(args) >= len(d.FVars) {
		pending := in.visit(expr.MkMVar(d.MVarIDPending))
		if !pending.HasExprMVar() {
			n := len(d.FVars)
			body := expr.InstantiateRevRange(expr.Abstract(pending, d.FVars), 0, n, args)
			return expr.HeadBeta(expr.MkAppRange(body, n, len(args), args))
		}
	}
	return expr.MkAppN(f, args...)
}
