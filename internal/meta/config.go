package meta

import (
	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/lctx"
)

// TransparencyMode selects which constants whnf may unfold.
// Ordered: Reducible < Instances < Default < All.
type TransparencyMode uint8

const (
	TransparencyReducible TransparencyMode = iota
	TransparencyInstances
	TransparencyDefault
	TransparencyAll
)

func (t TransparencyMode) String() string {
	switch t {
	case TransparencyReducible:
		return config.TransparencyReducible
	case TransparencyInstances:
		return config.TransparencyInstances
	case TransparencyAll:
		return config.TransparencyAll
	}
	return config.TransparencyDefault
}

// ParseTransparency maps a configuration name to a mode.
func ParseTransparency(s string) (TransparencyMode, bool) {
	switch s {
	case config.TransparencyReducible:
		return TransparencyReducible, true
	case config.TransparencyInstances:
		return TransparencyInstances, true
	case config.TransparencyDefault, "":
		return TransparencyDefault, true
	case config.TransparencyAll:
		return TransparencyAll, true
	}
	return TransparencyDefault, false
}

// Config holds the unifier switches of a call.
type Config struct {
	FOApprox           bool
	CtxApprox          bool
	QuasiPatternApprox bool
	ConstApprox        bool
	Transparency       TransparencyMode
}

// Context is the per-call reader state. It is a value: descending under a
// binder or changing a setting produces a new Context.
type Context struct {
	Config         Config
	LCtx           *lctx.LocalContext
	LocalInstances lctx.LocalInstances
	Depth          int
	MaxRecDepth    int
	Ref            SourceRef
}

func contextFromOptions(opts *config.Options) Context {
	t, _ := ParseTransparency(opts.Transparency)
	return Context{
		Config: Config{
			FOApprox:           opts.Approx.FOApprox,
			CtxApprox:          opts.Approx.CtxApprox,
			QuasiPatternApprox: opts.Approx.QuasiPatternApprox,
			ConstApprox:        opts.Approx.ConstApprox,
			Transparency:       t,
		},
		LCtx:        lctx.Empty(),
		MaxRecDepth: opts.MaxRecDepth,
	}
}

// with returns a Meta sharing this session but running under ctx.
func (m *Meta) with(ctx Context) *Meta {
	return &Meta{ctx: ctx, s: m.s}
}

// WithConfig returns a Meta whose Config is f applied to the current one.
func (m *Meta) WithConfig(f func(Config) Config) *Meta {
	ctx := m.ctx
	ctx.Config = f(ctx.Config)
	return m.with(ctx)
}

// WithTransparency returns a Meta that unfolds at mode.
func (m *Meta) WithTransparency(mode TransparencyMode) *Meta {
	return m.WithConfig(func(c Config) Config {
		c.Transparency = mode
		return c
	})
}

func (m *Meta) WithReducible() *Meta { return m.WithTransparency(TransparencyReducible) }

func (m *Meta) WithDefault() *Meta { return m.WithTransparency(TransparencyDefault) }

// WithAtLeastTransparency raises the transparency to mode, never lowering it.
func (m *Meta) WithAtLeastTransparency(mode TransparencyMode) *Meta {
	if m.ctx.Config.Transparency >= mode {
		return m
	}
	return m.WithTransparency(mode)
}

// ApproxDefEq enables first-order and context approximations.
func (m *Meta) ApproxDefEq() *Meta {
	return m.WithConfig(func(c Config) Config {
		c.FOApprox, c.CtxApprox, c.QuasiPatternApprox = true, true, true
		return c
	})
}

// FullApproxDefEq is ApproxDefEq plus constant approximation.
func (m *Meta) FullApproxDefEq() *Meta {
	return m.WithConfig(func(c Config) Config {
		c.FOApprox, c.CtxApprox, c.QuasiPatternApprox, c.ConstApprox = true, true, true, true
		return c
	})
}

// WithLCtx returns a Meta running under the given local context and instances.
func (m *Meta) WithLCtx(lc *lctx.LocalContext, insts lctx.LocalInstances) *Meta {
	ctx := m.ctx
	ctx.LCtx = lc
	ctx.LocalInstances = insts
	return m.with(ctx)
}

// WithRef tags failures raised below with ref.
func (m *Meta) WithRef(ref SourceRef) *Meta {
	ctx := m.ctx
	ctx.Ref = ref
	return m.with(ctx)
}

// WithIncRecDepth enters one level of a recursive operation. Slot
// implementations that loop internally call it once per iteration.
func (m *Meta) WithIncRecDepth() (*Meta, error) { return m.withIncRecDepth() }

// withIncRecDepth enters one level of a recursive operation.
func (m *Meta) withIncRecDepth() (*Meta, error) {
	if m.ctx.Depth >= m.ctx.MaxRecDepth {
		return nil, m.throwf(KindRecursionLimit, "maximum recursion depth has been reached (%d)", m.ctx.MaxRecDepth)
	}
	ctx := m.ctx
	ctx.Depth++
	return m.with(ctx), nil
}
