package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
	"github.com/funvibe/metakernel/internal/mctx"
)

// Unbounded disables the binder limit of the bounded telescopes.
const Unbounded = -1

// Continuation receives the introduced variables and the residual body. It runs
// under the extended local context and local instances.
type Continuation[T any] func(m *Meta, xs []expr.Expr, body expr.Expr) (T, error)

func below(n, limit int) bool { return limit < 0 || n < limit }

// ForallTelescope introduces a free variable for every leading Pi binder of t.
func ForallTelescope[T any](m *Meta, t expr.Expr, k Continuation[T]) (T, error) {
	return forallTelescope(m, t, false, Unbounded, k)
}

// ForallTelescopeReducing also puts the residual type in whnf and keeps going
// when that exposes more binders.
func ForallTelescopeReducing[T any](m *Meta, t expr.Expr, k Continuation[T]) (T, error) {
	return forallTelescope(m, t, true, Unbounded, k)
}

// ForallBoundedTelescope is ForallTelescopeReducing that stops after maxFVars
// binders, leaving the rest of the type untouched.
func ForallBoundedTelescope[T any](m *Meta, t expr.Expr, maxFVars int, k Continuation[T]) (T, error) {
	return forallTelescope(m, t, true, maxFVars, k)
}

func forallTelescope[T any](m *Meta, t expr.Expr, reducing bool, maxFVars int, k Continuation[T]) (T, error) {
	if !reducing && !expr.IsForall(t) {
		return k(m, nil, t)
	}
	m2, err := m.withIncRecDepth()
	if err != nil {
		var zero T
		return zero, err
	}
	return processForall(m2, m2.ctx.LCtx, nil, 0, t, reducing, maxFVars, k)
}

func processForall[T any](m *Meta, lc *lctx.LocalContext, fvars []expr.Expr, j int, t expr.Expr,
	reducing bool, maxFVars int, k Continuation[T]) (T, error) {
	for below(len(fvars), maxFVars) {
		pi, ok := t.(*expr.Pi)
		if !ok {
			break
		}
		d := expr.InstantiateRevRange(pi.BinderType, j, len(fvars), fvars)
		id := m.MkFreshFVarID()
		lc = lc.MkLocalDecl(id, pi.BinderName, d, pi.Info)
		fvars = append(fvars, expr.MkFVar(id))
		t = pi.Body
	}
	t = expr.InstantiateRevRange(t, j, len(fvars), fvars)
	m.trace(config.TraceTelescope, "forall window", func() []zap.Field {
		return []zap.Field{zap.Int("from", j), zap.Int("to", len(fvars))}
	})
	inner := m.WithLCtx(lc, m.ctx.LocalInstances)
	return withNewLocalInstances(inner, fvars, j, func(m *Meta) (T, error) {
		if reducing && below(len(fvars), maxFVars) {
			nt, err := m.Whnf(t)
			if err != nil {
				var zero T
				return zero, err
			}
			if expr.IsForall(nt) {
				return processForall(m, lc, fvars, len(fvars), nt, reducing, maxFVars, k)
			}
		}
		return k(m, fvars, t)
	})
}

// LambdaTelescope introduces a free variable for every leading lambda and let
// binder of e. Let values become let declarations.
func LambdaTelescope[T any](m *Meta, e expr.Expr, k Continuation[T]) (T, error) {
	m2, err := m.withIncRecDepth()
	if err != nil {
		var zero T
		return zero, err
	}
	lc := m2.ctx.LCtx
	var fvars []expr.Expr
	for {
		switch b := e.(type) {
		case *expr.Lam:
			d := expr.InstantiateRev(b.BinderType, fvars)
			id := m2.MkFreshFVarID()
			lc = lc.MkLocalDecl(id, b.BinderName, d, b.Info)
			fvars = append(fvars, expr.MkFVar(id))
			e = b.Body
			continue
		case *expr.Let:
			t := expr.InstantiateRev(b.Type, fvars)
			v := expr.InstantiateRev(b.Value, fvars)
			id := m2.MkFreshFVarID()
			lc = lc.MkLetDecl(id, b.Name, t, v, b.NonDep)
			fvars = append(fvars, expr.MkFVar(id))
			e = b.Body
			continue
		}
		break
	}
	e = expr.InstantiateRev(e, fvars)
	inner := m2.WithLCtx(lc, m2.ctx.LocalInstances)
	return withNewLocalInstances(inner, fvars, 0, func(m *Meta) (T, error) {
		return k(m, fvars, e)
	})
}

// WithLocalDecl declares x : t and runs k under it.
func WithLocalDecl[T any](m *Meta, n expr.Name, bi expr.BinderInfo, t expr.Expr, k func(m *Meta, x expr.Expr) (T, error)) (T, error) {
	id := m.MkFreshFVarID()
	x := expr.MkFVar(id)
	inner := m.WithLCtx(m.ctx.LCtx.MkLocalDecl(id, n, t, bi), m.ctx.LocalInstances)
	return withNewLocalInstances(inner, []expr.Expr{x}, 0, func(m *Meta) (T, error) {
		return k(m, x)
	})
}

// WithLetDecl declares x : t := v and runs k under it.
func WithLetDecl[T any](m *Meta, n expr.Name, t, v expr.Expr, k func(m *Meta, x expr.Expr) (T, error)) (T, error) {
	id := m.MkFreshFVarID()
	x := expr.MkFVar(id)
	inner := m.WithLCtx(m.ctx.LCtx.MkLetDecl(id, n, t, v, false), m.ctx.LocalInstances)
	return withNewLocalInstances(inner, []expr.Expr{x}, 0, func(m *Meta) (T, error) {
		return k(m, x)
	})
}

// WithNewLocalInstances registers the class-typed variables among fvars[j:],
// which must already be declared, and runs k.
func WithNewLocalInstances[T any](m *Meta, fvars []expr.Expr, j int, k func(m *Meta) (T, error)) (T, error) {
	return withNewLocalInstances(m, fvars, j, k)
}

func withNewLocalInstances[T any](m *Meta, fvars []expr.Expr, j int, k func(m *Meta) (T, error)) (T, error) {
	insts := m.ctx.LocalInstances
	added := false
	for _, x := range fvars[j:] {
		d, err := m.GetFVarLocalDecl(x)
		if err != nil {
			var zero T
			return zero, err
		}
		c, ok := m.IsClass(d.Type)
		if !ok {
			continue
		}
		insts = insts.Push(lctx.LocalInstance{ClassName: c, FVar: x})
		added = true
		m.trace(config.TraceTelescope, "local instance", func() []zap.Field {
			return []zap.Field{zap.String("class", string(c)), zap.String("fvar", string(d.UserName))}
		})
	}
	if !added {
		return k(m)
	}
	inner := m.WithLCtx(m.ctx.LCtx, insts)
	return ResettingSynthInstanceCache(inner, k)
}

// MetaTelescope is the result of the metavariable-producing telescopes.
type MetaTelescope struct {
	MVars       []expr.Expr
	BinderInfos []expr.BinderInfo
	Type        expr.Expr
}

// ForallMetaTelescope creates a metavariable for every leading Pi binder of t.
// Instance-implicit binders get synthetic metavariables, the others get kind.
func (m *Meta) ForallMetaTelescope(t expr.Expr, kind mctx.MetavarKind) (MetaTelescope, error) {
	return m.forallMetaTelescope(t, false, Unbounded, kind)
}

// ForallMetaTelescopeReducing also reduces the residual type to expose more
// binders, up to maxMVars metavariables.
func (m *Meta) ForallMetaTelescopeReducing(t expr.Expr, maxMVars int, kind mctx.MetavarKind) (MetaTelescope, error) {
	return m.forallMetaTelescope(t, true, maxMVars, kind)
}

// ForallMetaBoundedTelescope stops after maxMVars metavariables.
func (m *Meta) ForallMetaBoundedTelescope(t expr.Expr, maxMVars int, kind mctx.MetavarKind) (MetaTelescope, error) {
	return m.forallMetaTelescope(t, true, maxMVars, kind)
}

func binderMVarKind(bi expr.BinderInfo, kind mctx.MetavarKind) mctx.MetavarKind {
	if bi.IsInstImplicit() {
		return mctx.Synthetic
	}
	return kind
}

func (m *Meta) forallMetaTelescope(t expr.Expr, reducing bool, maxMVars int, kind mctx.MetavarKind) (MetaTelescope, error) {
	m2, err := m.withIncRecDepth()
	if err != nil {
		return MetaTelescope{}, err
	}
	var res MetaTelescope
	j := 0
	for {
		if !below(len(res.MVars), maxMVars) {
			res.Type = expr.InstantiateRevRange(t, j, len(res.MVars), res.MVars)
			return res, nil
		}
		if pi, ok := t.(*expr.Pi); ok {
			d := expr.InstantiateRevRange(pi.BinderType, j, len(res.MVars), res.MVars)
			mv := m2.MkFreshExprMVar(d, binderMVarKind(pi.Info, kind), pi.BinderName)
			res.MVars = append(res.MVars, mv)
			res.BinderInfos = append(res.BinderInfos, pi.Info)
			t = pi.Body
			continue
		}
		t = expr.InstantiateRevRange(t, j, len(res.MVars), res.MVars)
		if reducing {
			nt, err := m2.Whnf(t)
			if err != nil {
				return MetaTelescope{}, err
			}
			if expr.IsForall(nt) {
				t = nt
				j = len(res.MVars)
				continue
			}
		}
		res.Type = t
		return res, nil
	}
}

// LambdaMetaTelescope creates a metavariable for up to maxMVars leading lambdas of e.
func (m *Meta) LambdaMetaTelescope(e expr.Expr, maxMVars int) (MetaTelescope, error) {
	m2, err := m.withIncRecDepth()
	if err != nil {
		return MetaTelescope{}, err
	}
	var res MetaTelescope
	for below(len(res.MVars), maxMVars) {
		lam, ok := e.(*expr.Lam)
		if !ok {
			break
		}
		d := expr.InstantiateRev(lam.BinderType, res.MVars)
		mv := m2.MkFreshExprMVar(d, binderMVarKind(lam.Info, mctx.Natural), lam.BinderName)
		res.MVars = append(res.MVars, mv)
		res.BinderInfos = append(res.BinderInfos, lam.Info)
		e = lam.Body
	}
	res.Type = expr.InstantiateRev(e, res.MVars)
	return res, nil
}

// InstantiateForall instantiates the first len(args) Pi binders of t with args,
// reducing the type with whnf when a binder is not syntactically visible.
func (m *Meta) InstantiateForall(t expr.Expr, args []expr.Expr) (expr.Expr, error) {
	for i, a := range args {
		pi, ok := t.(*expr.Pi)
		if !ok {
			nt, err := m.Whnf(t)
			if err != nil {
				return nil, err
			}
			if pi, ok = nt.(*expr.Pi); !ok {
				return nil, m.throwf(KindOther, "invalid instantiateForall, too many arguments (%d), type %s has only %d binders",
					len(args), t, i)
			}
		}
		t = expr.Instantiate1(pi.Body, a)
	}
	return t, nil
}

// InstantiateLambda instantiates the first len(args) lambda binders of e with args.
func (m *Meta) InstantiateLambda(e expr.Expr, args []expr.Expr) (expr.Expr, error) {
	for i := range args {
		lam, ok := e.(*expr.Lam)
		if !ok {
			return nil, m.throwf(KindOther, "invalid instantiateLambda, too many arguments (%d), expression has only %d binders",
				len(args), i)
		}
		e = lam.Body
	}
	return expr.InstantiateRev(e, args), nil
}
