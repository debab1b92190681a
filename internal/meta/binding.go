package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/mctx"
)

func (m *Meta) mkBinding(isLambda bool, xs []expr.Expr, e expr.Expr, opts mctx.BindingOptions) (expr.Expr, error) {
	if len(xs) == 0 {
		return e, nil
	}
	r, mc, err := m.MCtx().MkBinding(m.s.ngen, isLambda, m.ctx.LCtx, xs, e, opts)
	if err != nil {
		m.trace(config.TraceMkBinding, "failed", func() []zap.Field {
			return []zap.Field{zap.Error(err)}
		})
		return nil, m.wrap(err)
	}
	if r.HasLocal() {
		return nil, m.throwf(KindMalformedTelescope, "raw local variable escaped binder construction in %s", r)
	}
	created := mc.NumDecls() - m.MCtx().NumDecls()
	m.setMCtx(mc)
	m.trace(config.TraceMkBinding, "done", func() []zap.Field {
		return []zap.Field{zap.Int("binders", len(xs)), zap.Int("auxMVars", created), zap.Bool("lambda", isLambda)}
	})
	return r, nil
}

// MkForallFVars abstracts the free variables xs over e as Pi binders.
func (m *Meta) MkForallFVars(xs []expr.Expr, e expr.Expr) (expr.Expr, error) {
	return m.mkBinding(false, xs, e, mctx.BindingOptions{})
}

// MkLambdaFVars abstracts the free variables xs over e as lambda binders.
func (m *Meta) MkLambdaFVars(xs []expr.Expr, e expr.Expr) (expr.Expr, error) {
	return m.mkBinding(true, xs, e, mctx.BindingOptions{})
}

// MkLetFVars is MkLambdaFVars for let variables, dropping unused lets.
func (m *Meta) MkLetFVars(xs []expr.Expr, e expr.Expr) (expr.Expr, error) {
	return m.mkBinding(true, xs, e, mctx.BindingOptions{UsedLetOnly: true})
}

// MkForallUsedOnly is MkForallFVars keeping only the binders e depends on.
func (m *Meta) MkForallUsedOnly(xs []expr.Expr, e expr.Expr) (expr.Expr, error) {
	return m.mkBinding(false, xs, e, mctx.BindingOptions{UsedOnly: true, UsedLetOnly: true})
}

// ElimMVarDeps rewrites e so that none of its metavariables can see xs.
func (m *Meta) ElimMVarDeps(xs []expr.Expr, e expr.Expr) (expr.Expr, error) {
	if len(xs) == 0 || !e.HasExprMVar() {
		return e, nil
	}
	r, mc, err := m.MCtx().ElimMVarDeps(m.s.ngen, xs, e)
	if err != nil {
		return nil, m.wrap(err)
	}
	m.setMCtx(mc)
	return r, nil
}
