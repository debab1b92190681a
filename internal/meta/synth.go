package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
)

// InstanceResolver searches an instance of the class type t. A nil result
// with a nil error means there is none.
type InstanceResolver func(m *Meta, t expr.Expr) (expr.Expr, error)

// SynthInstanceCached returns an instance of t, consulting the instance cache
// first. The resolver runs one depth frame deeper at instances transparency, so
// it cannot assign metavariables of the caller; a result that still mentions
// its own metavariables is rejected. Resolver failures other than the
// recursion limit mean "no instance".
func (m *Meta) SynthInstanceCached(t expr.Expr, resolve InstanceResolver) (expr.Expr, bool, error) {
	t = m.InstantiateMVars(t)
	cacheable := !expr.HasMVar(t)
	if cacheable {
		if r, ok := m.s.state.Cache.synthInstance.Get(t); ok {
			m.trace(config.TraceSynthInst, "cache hit", func() []zap.Field {
				return []zap.Field{zap.Stringer("type", t), zap.Bool("found", r != nil)}
			})
			return r, r != nil, nil
		}
	}
	inner := m.WithTransparency(TransparencyInstances).WithConfig(func(c Config) Config {
		c.FOApprox, c.CtxApprox, c.ConstApprox = true, true, false
		return c
	})
	r, err := WithNewMCtxDepth(inner, func(m *Meta) (expr.Expr, error) {
		v, err := resolve(m, t)
		if err != nil {
			if IsKind(err, KindRecursionLimit) {
				return nil, err
			}
			m.trace(config.TraceSynthInst, "resolver failed", func() []zap.Field {
				return []zap.Field{zap.Error(err)}
			})
			return nil, nil
		}
		if v == nil {
			return nil, nil
		}
		v = m.InstantiateMVars(v)
		if m.MCtx().HasAssignableMVar(v) {
			return nil, nil
		}
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	if cacheable {
		m.s.state.Cache.synthInstance = m.s.state.Cache.synthInstance.Put(t, r)
	}
	m.trace(config.TraceSynthInst, "result", func() []zap.Field {
		return []zap.Field{zap.Stringer("type", t), zap.Bool("found", r != nil), zap.Bool("cached", cacheable)}
	})
	return r, r != nil, nil
}
