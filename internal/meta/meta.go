// Package meta is the metavariable layer of the elaborator: per-session state
// (metavariable context, caches, postponed universe constraints), the per-call
// Context, telescopes, the type class oracle and binder construction.
//
// A Meta value pairs a Context with the session it runs in. Operations that
// descend under binders or change settings return a new Meta sharing the same
// session; operations that must undo their effects take a body callback and
// restore the session state with defer.
package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/env"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
	"github.com/funvibe/metakernel/internal/logging"
	"github.com/funvibe/metakernel/internal/mctx"
)

// PostponedEntry is a universe constraint lhs =?= rhs waiting for more assignments.
type PostponedEntry struct {
	Ref SourceRef
	Lhs expr.Level
	Rhs expr.Level
}

// State is the backtrackable part of a session.
type State struct {
	MCtx      mctx.MetavarContext
	Cache     Cache
	Postponed []PostponedEntry
	Env       *env.Environment
}

// Session is the state of one elaboration. It is never shared between goroutines.
type Session struct {
	ID     string
	state  State
	ngen   *expr.NameGenerator
	reg    *Registry
	logger *zap.Logger
	tracer *logging.Tracer
}

// Meta is the handle every operation runs on.
type Meta struct {
	ctx Context
	s   *Session
}

// New starts a session over e using the operations in reg. Nil arguments select
// the defaults: an empty environment, an empty registry, default options and no
// logging.
func New(e *env.Environment, reg *Registry, opts *config.Options, logger *zap.Logger) *Meta {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if e == nil {
		e = env.Empty()
	}
	id := logging.SessionID()
	logger = logger.With(zap.String("session", id))
	s := &Session{
		ID:     id,
		state:  State{MCtx: mctx.New(), Env: e},
		ngen:   expr.NewNameGenerator(),
		reg:    reg,
		logger: logger,
		tracer: logging.NewTracer(logger, opts.Trace),
	}
	return &Meta{ctx: contextFromOptions(opts), s: s}
}

func (m *Meta) Context() Context                    { return m.ctx }
func (m *Meta) Config() Config                      { return m.ctx.Config }
func (m *Meta) LCtx() *lctx.LocalContext            { return m.ctx.LCtx }
func (m *Meta) LocalInstances() lctx.LocalInstances { return m.ctx.LocalInstances }
func (m *Meta) MCtx() mctx.MetavarContext           { return m.s.state.MCtx }
func (m *Meta) Cache() Cache                        { return m.s.state.Cache }
func (m *Meta) Env() *env.Environment               { return m.s.state.Env }
func (m *Meta) Postponed() []PostponedEntry         { return m.s.state.Postponed }
func (m *Meta) Session() *Session                   { return m.s }
func (m *Meta) Logger() *zap.Logger                 { return m.s.logger }
func (m *Meta) setMCtx(mc mctx.MetavarContext)      { m.s.state.MCtx = mc }

func (m *Meta) trace(cls, msg string, f func() []zap.Field) { m.s.tracer.Trace(cls, msg, f) }

// SaveState snapshots the backtrackable state. The cache is not part of it.
func (m *Meta) SaveState() State {
	return m.s.state
}

// Restore rolls back to a snapshot. Cache entries computed since are kept:
// they never depend on assignments that are being undone.
func (m *Meta) Restore(saved State) {
	cache := m.s.state.Cache
	m.s.state = saved
	m.s.state.Cache = cache
}

// CommitWhen runs body and keeps its effects only when it returns true.
func (m *Meta) CommitWhen(body func(m *Meta) (bool, error)) (bool, error) {
	saved := m.SaveState()
	ok, err := body(m)
	if err != nil || !ok {
		m.Restore(saved)
	}
	return ok, err
}

// WithNewMCtxDepth runs body one depth frame deeper: metavariables created
// before are read-only inside. Afterwards the metavariable context and the
// postponed queue are restored unconditionally, so results must be
// instantiated before body returns.
func WithNewMCtxDepth[T any](m *Meta, body func(m *Meta) (T, error)) (T, error) {
	savedMCtx := m.s.state.MCtx
	savedPostponed := m.s.state.Postponed
	m.s.state.MCtx = savedMCtx.IncDepth()
	m.s.state.Postponed = nil
	m.trace(config.TraceDepth, "enter depth", func() []zap.Field {
		return []zap.Field{zap.Int("depth", m.s.state.MCtx.Depth())}
	})
	defer func() {
		m.s.state.MCtx = savedMCtx
		m.s.state.Postponed = savedPostponed
		m.trace(config.TraceDepth, "leave depth", func() []zap.Field {
			return []zap.Field{zap.Int("depth", savedMCtx.Depth())}
		})
	}()
	return body(m)
}

func (m *Meta) mkFreshID() expr.Name { return m.s.ngen.Next() }

// MkFreshFVarID returns an unused free variable id.
func (m *Meta) MkFreshFVarID() expr.FVarID { return expr.FVarID(m.mkFreshID()) }

// MkFreshLevelMVar creates a universe metavariable at the current depth.
func (m *Meta) MkFreshLevelMVar() expr.Level {
	id := expr.LMVarID(m.mkFreshID())
	m.setMCtx(m.MCtx().AddLevelMVarDecl(id))
	return expr.MkLevelMVar(id)
}

// MkFreshExprMVarAt creates a metavariable over an explicit local context.
func (m *Meta) MkFreshExprMVarAt(lc *lctx.LocalContext, insts lctx.LocalInstances, t expr.Expr,
	kind mctx.MetavarKind, userName expr.Name, numScopeArgs int) expr.Expr {
	id := expr.MVarID(m.mkFreshID())
	m.setMCtx(m.MCtx().AddExprMVarDecl(id, userName, lc, insts, t, kind, numScopeArgs))
	return expr.MkMVar(id)
}

// MkFreshExprMVar creates a metavariable of type t in the current context.
// A nil t stands for a fresh type metavariable.
func (m *Meta) MkFreshExprMVar(t expr.Expr, kind mctx.MetavarKind, userName expr.Name) expr.Expr {
	if t == nil {
		t = m.MkFreshTypeMVar(mctx.Natural)
	}
	return m.MkFreshExprMVarAt(m.ctx.LCtx, m.ctx.LocalInstances, t, kind, userName, 0)
}

// MkFreshTypeMVar creates ?α : Sort ?u.
func (m *Meta) MkFreshTypeMVar(kind mctx.MetavarKind) expr.Expr {
	u := m.MkFreshLevelMVar()
	return m.MkFreshExprMVar(expr.MkSort(u), kind, expr.Anonymous)
}

// GetMVarDecl returns the declaration of a metavariable.
func (m *Meta) GetMVarDecl(id expr.MVarID) (*mctx.MetavarDecl, error) {
	d, ok := m.MCtx().FindDecl(id)
	if !ok {
		return nil, m.throwf(KindUnknownMVar, "unknown metavariable '?%s'", id)
	}
	return d, nil
}

// AssignExprMVar assigns v to id.
func (m *Meta) AssignExprMVar(id expr.MVarID, v expr.Expr) error {
	mc, err := m.MCtx().AssignExpr(id, v)
	if err != nil {
		return m.wrap(err)
	}
	m.setMCtx(mc)
	return nil
}

// AssignLevelMVar assigns l to id.
func (m *Meta) AssignLevelMVar(id expr.LMVarID, l expr.Level) error {
	mc, err := m.MCtx().AssignLevel(id, l)
	if err != nil {
		return m.wrap(err)
	}
	m.setMCtx(mc)
	return nil
}

func (m *Meta) IsReadOnlyExprMVar(id expr.MVarID) bool { return m.MCtx().IsReadOnlyExprMVar(id) }

func (m *Meta) IsReadOnlyLevelMVar(id expr.LMVarID) bool { return m.MCtx().IsReadOnlyLevelMVar(id) }

func (m *Meta) InstantiateMVars(e expr.Expr) expr.Expr { return m.MCtx().InstantiateMVars(e) }

func (m *Meta) InstantiateLevelMVars(l expr.Level) expr.Level {
	return m.MCtx().InstantiateLevelMVars(l)
}

// RenameMVar changes the display name of a metavariable.
func (m *Meta) RenameMVar(id expr.MVarID, n expr.Name) error {
	mc, err := m.MCtx().RenameMVar(id, n)
	if err != nil {
		return m.wrap(err)
	}
	m.setMCtx(mc)
	return nil
}

// SetMVarKind changes the kind of a metavariable.
func (m *Meta) SetMVarKind(id expr.MVarID, kind mctx.MetavarKind) error {
	mc, err := m.MCtx().SetMVarKind(id, kind)
	if err != nil {
		return m.wrap(err)
	}
	m.setMCtx(mc)
	return nil
}

// GetLocalDecl looks a free variable up in the current local context.
func (m *Meta) GetLocalDecl(id expr.FVarID) (*lctx.LocalDecl, error) {
	d, ok := m.ctx.LCtx.Find(id)
	if !ok {
		return nil, m.throwf(KindUnknownFVar, "unknown free variable '%s'", id)
	}
	return d, nil
}

// GetFVarLocalDecl is GetLocalDecl for an FVar expression.
func (m *Meta) GetFVarLocalDecl(e expr.Expr) (*lctx.LocalDecl, error) {
	fv, ok := e.(*expr.FVar)
	if !ok {
		return nil, m.throwf(KindOther, "free variable expected, got %s", e)
	}
	return m.GetLocalDecl(fv.ID)
}

// GetLocalDeclFromUserName returns the innermost declaration named n.
func (m *Meta) GetLocalDeclFromUserName(n expr.Name) (*lctx.LocalDecl, error) {
	d, ok := m.ctx.LCtx.FindFromUserName(n)
	if !ok {
		return nil, m.throwf(KindUnknownFVar, "unknown local declaration '%s'", n)
	}
	return d, nil
}

// GetConstInfo looks a global constant up in the session environment.
func (m *Meta) GetConstInfo(n expr.Name) (*env.ConstantInfo, error) {
	c, ok := m.Env().Find(n)
	if !ok {
		return nil, m.throwf(KindUnknownConstant, "unknown constant '%s'", n)
	}
	return c, nil
}

// Whnf puts e in weak head normal form through the registered slot.
func (m *Meta) Whnf(e expr.Expr) (expr.Expr, error) {
	if m.s.reg.whnf == nil {
		return nil, slotEmpty(m, SlotWhnf)
	}
	if r, ok := m.whnfCacheFind(e); ok {
		return r, nil
	}
	m2, err := m.withIncRecDepth()
	if err != nil {
		return nil, err
	}
	r, err := m.s.reg.whnf(m2, e)
	if err != nil {
		return nil, err
	}
	m.whnfCacheStore(e, r)
	return r, nil
}

// WhnfR is Whnf at reducible transparency.
func (m *Meta) WhnfR(e expr.Expr) (expr.Expr, error) { return m.WithReducible().Whnf(e) }

// WhnfD is Whnf at default transparency.
func (m *Meta) WhnfD(e expr.Expr) (expr.Expr, error) { return m.WithDefault().Whnf(e) }

// InferType computes the type of e through the registered slot.
func (m *Meta) InferType(e expr.Expr) (expr.Expr, error) {
	if m.s.reg.inferType == nil {
		return nil, slotEmpty(m, SlotInferType)
	}
	cacheable := !expr.HasMVar(e)
	if cacheable {
		if t, ok := m.s.state.Cache.inferType.Get(e); ok {
			return t, nil
		}
	}
	m2, err := m.withIncRecDepth()
	if err != nil {
		return nil, err
	}
	t, err := m.s.reg.inferType(m2, e)
	if err != nil {
		return nil, err
	}
	if cacheable {
		m.s.state.Cache.inferType = m.s.state.Cache.inferType.Put(e, t)
	}
	return t, nil
}

// IsExprDefEq decides a =?= b. Assignments made by a failed check are undone.
func (m *Meta) IsExprDefEq(a, b expr.Expr) (bool, error) {
	if m.s.reg.isExprDefEq == nil {
		return false, slotEmpty(m, SlotIsExprDefEq)
	}
	m2, err := m.withIncRecDepth()
	if err != nil {
		return false, err
	}
	return m.CommitWhen(func(*Meta) (bool, error) {
		return m.s.reg.isExprDefEq(m2, a, b)
	})
}

// IsDefEq is IsExprDefEq.
func (m *Meta) IsDefEq(a, b expr.Expr) (bool, error) { return m.IsExprDefEq(a, b) }

// SynthPending asks the registered slot to synthesize a pending metavariable.
func (m *Meta) SynthPending(id expr.MVarID) (bool, error) {
	if m.s.reg.synthPending == nil {
		return false, slotEmpty(m, SlotSynthPending)
	}
	m2, err := m.withIncRecDepth()
	if err != nil {
		return false, err
	}
	return m.s.reg.synthPending(m2, id)
}

// IsType reports whether e is a type, i.e. its type reduces to a sort.
func (m *Meta) IsType(e expr.Expr) (bool, error) {
	t, err := m.InferType(e)
	if err != nil {
		return false, err
	}
	t, err = m.WhnfD(t)
	if err != nil {
		return false, err
	}
	_, ok := t.(*expr.Sort)
	return ok, nil
}

// IsProp reports whether e is a proposition, i.e. its type reduces to Prop.
func (m *Meta) IsProp(e expr.Expr) (bool, error) {
	t, err := m.InferType(e)
	if err != nil {
		return false, err
	}
	t, err = m.WhnfD(t)
	if err != nil {
		return false, err
	}
	s, ok := t.(*expr.Sort)
	return ok && expr.IsZero(m.InstantiateLevelMVars(s.Level)), nil
}
