package meta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/env"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
	"github.com/funvibe/metakernel/internal/mctx"
	"github.com/funvibe/metakernel/internal/reduce"
)

func TestMain(m *testing.M) {
	config.IsTestMode = true
	goleak.VerifyTestMain(m)
}

const monadEnv = `
classes: [Monad, Inhabited]
constants:
  - name: Nat
    type: Type
    kind: inductive
  - name: Nat.succ
    type: {arrow: [Nat, Nat]}
    kind: ctor
  - name: String
    type: Type
    kind: inductive
  - name: F
    type: {arrow: [Type, Type]}
  - name: f
    type: {arrow: [Nat, Nat, Nat]}
  - name: Monad
    type: {arrow: [{arrow: [Type, Type]}, Type]}
    kind: inductive
  - name: Inhabited
    type: {arrow: [Type, Type]}
    kind: inductive
  - name: instMonadF
    type: {app: [Monad, F]}
  - name: MonadAlias
    type: {arrow: [{arrow: [Type, Type]}, Type]}
    value: {lam: [{name: m, type: {arrow: [Type, Type]}}], body: {app: [Monad, m]}}
    reducibility: reducible
  - name: HiddenMonad
    type: {arrow: [{arrow: [Type, Type]}, Type]}
    value: {lam: [{name: m, type: {arrow: [Type, Type]}}], body: {app: [Monad, m]}}
  - name: NatFun
    type: Type
    value: {arrow: [Nat, Nat]}
  - name: id
    levelParams: [u]
    type: {pi: [{name: α, type: {sort: {succ: u}}, info: implicit}, {name: a, type: α}], body: α}
    value: {lam: [{name: α, type: {sort: {succ: u}}, info: implicit}, {name: a, type: α}], body: a}
    reducibility: reducible
`

var (
	nat   = expr.MkConst("Nat")
	typ   = expr.MkType()
	monad = expr.MkConst("Monad")
	fnF   = expr.MkConst("F")
)

func testEnv(t *testing.T) *env.Environment {
	t.Helper()
	e, err := env.Parse([]byte(monadEnv), "monad.yaml")
	require.NoError(t, err)
	return e
}

// newMeta starts a session with the reference slot implementations.
func newMeta(t *testing.T) *meta.Meta {
	t.Helper()
	return meta.New(testEnv(t), reduce.NewRegistry(), nil, nil)
}

func mvarID(e expr.Expr) expr.MVarID { return e.(*expr.MVar).ID }

// monadScenario is ∀ (α : Type → Type) [Monad α] (x : α Nat), Nat.
func monadScenario() expr.Expr {
	return expr.MkForall("α", expr.BinderDefault, expr.MkArrow(typ, typ),
		expr.MkForall("inst", expr.BinderInstImplicit, expr.MkApp(monad, expr.MkBVar(0)),
			expr.MkForall("x", expr.BinderDefault, expr.MkApp(expr.MkBVar(1), nat), nat)))
}

func TestNewDefaults(t *testing.T) {
	m := meta.New(nil, nil, nil, nil)
	assert.NotEmpty(t, m.Session().ID)
	assert.Equal(t, 0, m.Env().NumConstants())
	assert.Equal(t, meta.TransparencyDefault, m.Config().Transparency)
	assert.Equal(t, config.DefaultMaxRecDepth, m.Context().MaxRecDepth)
	assert.True(t, m.LCtx().IsEmpty())
	assert.Empty(t, m.LocalInstances())
}

func TestNewFromOptions(t *testing.T) {
	opts, err := config.ParseOptions([]byte("transparency: all\napprox: {foApprox: true}\nmaxRecDepth: 64\n"), "opts.yaml")
	require.NoError(t, err)
	m := meta.New(nil, nil, opts, nil)
	assert.Equal(t, meta.TransparencyAll, m.Config().Transparency)
	assert.True(t, m.Config().FOApprox)
	assert.False(t, m.Config().ConstApprox)
	assert.Equal(t, 64, m.Context().MaxRecDepth)
}

func TestDepthScenarioLeavesMVarUntouched(t *testing.T) {
	m := newMeta(t)
	mv := m.MkFreshExprMVar(nat, mctx.Natural, "m")
	before := m.MCtx()

	_, err := meta.WithNewMCtxDepth(m, func(m *meta.Meta) (struct{}, error) {
		assert.Equal(t, 1, m.MCtx().Depth())
		inner := m.MkFreshExprMVar(nat, mctx.Natural, "k")
		require.NoError(t, m.AssignExprMVar(mvarID(inner), expr.MkNatLit(1)))
		return struct{}{}, m.AssignExprMVar(mvarID(mv), expr.MkNatLit(3))
	})
	require.Error(t, err)
	assert.True(t, meta.IsKind(err, meta.KindReadOnlyMVar))

	assert.True(t, before == m.MCtx(), "metavariable context must be restored exactly")
	assert.False(t, m.MCtx().IsExprAssigned(mvarID(mv)))
	d, err := m.GetMVarDecl(mvarID(mv))
	require.NoError(t, err)
	assert.True(t, expr.Equal(nat, d.Type))
}

func TestDepthIsolationOnPanic(t *testing.T) {
	m := newMeta(t)
	m.MkFreshExprMVar(nat, mctx.Natural, "m")
	before := m.MCtx()
	assert.Panics(t, func() {
		_, _ = meta.WithNewMCtxDepth(m, func(m *meta.Meta) (int, error) {
			m.MkFreshExprMVar(nat, mctx.Natural, "k")
			panic("boom")
		})
	})
	assert.True(t, before == m.MCtx())
}

func TestReadOnlyInvariant(t *testing.T) {
	m := newMeta(t)
	natural := m.MkFreshExprMVar(nat, mctx.Natural, "a")
	opaque := m.MkFreshExprMVar(nat, mctx.SyntheticOpaque, "b")
	u := m.MkFreshLevelMVar().(*expr.LevelMVar)

	err := m.AssignExprMVar(mvarID(opaque), expr.MkNatLit(1))
	assert.True(t, meta.IsKind(err, meta.KindReadOnlyMVar), "synthetic opaque is read-only at any depth")

	_, err = meta.WithNewMCtxDepth(m, func(m *meta.Meta) (bool, error) {
		assert.True(t, m.IsReadOnlyExprMVar(mvarID(natural)))
		assert.True(t, m.IsReadOnlyLevelMVar(u.ID))
		err := m.AssignExprMVar(mvarID(natural), expr.MkNatLit(1))
		assert.True(t, meta.IsKind(err, meta.KindReadOnlyMVar))
		err = m.AssignLevelMVar(u.ID, expr.LevelOne)
		assert.True(t, meta.IsKind(err, meta.KindReadOnlyMVar))
		return true, nil
	})
	require.NoError(t, err)

	require.NoError(t, m.AssignExprMVar(mvarID(natural), expr.MkNatLit(1)))
	err = m.AssignExprMVar(mvarID(natural), expr.MkNatLit(2))
	assert.True(t, meta.IsKind(err, meta.KindAlreadyAssigned))
	err = m.AssignExprMVar("nope", expr.MkNatLit(2))
	assert.True(t, meta.IsKind(err, meta.KindUnknownMVar))
}

func TestSaveStateRestore(t *testing.T) {
	m := newMeta(t)
	mv := m.MkFreshExprMVar(nat, mctx.Natural, "m")
	saved := m.SaveState()

	require.NoError(t, m.AssignExprMVar(mvarID(mv), expr.MkNatLit(3)))
	m.PostponeLevelDefEq(m.MkFreshLevelMVar(), expr.LevelOne)
	_, err := m.InferType(expr.MkNatLit(1))
	require.NoError(t, err)
	cached := m.Cache().Sizes()["inferType"]

	m.Restore(saved)
	assert.False(t, m.MCtx().IsExprAssigned(mvarID(mv)))
	assert.Empty(t, m.Postponed())
	assert.Equal(t, cached, m.Cache().Sizes()["inferType"], "restore keeps the cache")
}

func TestCommitWhen(t *testing.T) {
	m := newMeta(t)
	mv := m.MkFreshExprMVar(nat, mctx.Natural, "m")

	ok, err := m.CommitWhen(func(m *meta.Meta) (bool, error) {
		return false, m.AssignExprMVar(mvarID(mv), expr.MkNatLit(3))
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, m.MCtx().IsExprAssigned(mvarID(mv)))

	ok, err = m.CommitWhen(func(m *meta.Meta) (bool, error) {
		return true, m.AssignExprMVar(mvarID(mv), expr.MkNatLit(3))
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, m.MCtx().IsExprAssigned(mvarID(mv)))
}

func TestFreshNamesAreNeverReused(t *testing.T) {
	m := newMeta(t)
	var first expr.Expr
	_, err := meta.WithNewMCtxDepth(m, func(m *meta.Meta) (bool, error) {
		first = m.MkFreshExprMVar(nat, mctx.Natural, "")
		return true, nil
	})
	require.NoError(t, err)
	second := m.MkFreshExprMVar(nat, mctx.Natural, "")
	assert.NotEqual(t, mvarID(first), mvarID(second))
}

func TestFreshTypeMVar(t *testing.T) {
	m := newMeta(t)
	mv := m.MkFreshExprMVar(nil, mctx.Natural, "x")
	d, err := m.GetMVarDecl(mvarID(mv))
	require.NoError(t, err)
	tm, ok := d.Type.(*expr.MVar)
	require.True(t, ok, "type of an untyped metavariable is a type metavariable")
	td, err := m.GetMVarDecl(tm.ID)
	require.NoError(t, err)
	s, ok := td.Type.(*expr.Sort)
	require.True(t, ok)
	assert.Equal(t, expr.LevelMVarKind, s.Level.Kind())
}

func TestRenameAndSetKind(t *testing.T) {
	m := newMeta(t)
	mv := m.MkFreshExprMVar(nat, mctx.Natural, "old")
	require.NoError(t, m.RenameMVar(mvarID(mv), "new"))
	require.NoError(t, m.SetMVarKind(mvarID(mv), mctx.SyntheticOpaque))
	d, err := m.GetMVarDecl(mvarID(mv))
	require.NoError(t, err)
	assert.Equal(t, expr.Name("new"), d.UserName)
	assert.True(t, m.IsReadOnlyExprMVar(mvarID(mv)))
}

func TestLookups(t *testing.T) {
	m := newMeta(t)
	_, err := m.GetConstInfo("Nat")
	require.NoError(t, err)
	_, err = m.GetConstInfo("Nope")
	assert.True(t, meta.IsKind(err, meta.KindUnknownConstant))
	_, err = m.GetLocalDecl("nope")
	assert.True(t, meta.IsKind(err, meta.KindUnknownFVar))
	_, err = m.GetMVarDecl("nope")
	assert.True(t, meta.IsKind(err, meta.KindUnknownMVar))

	_, err = meta.WithLocalDecl(m, "x", expr.BinderDefault, nat, func(m *meta.Meta, x expr.Expr) (bool, error) {
		d, err := m.GetLocalDeclFromUserName("x")
		require.NoError(t, err)
		assert.True(t, expr.Equal(x, d.ToExpr()))
		return true, nil
	})
	require.NoError(t, err)
	_, err = m.GetLocalDeclFromUserName("x")
	assert.True(t, meta.IsKind(err, meta.KindUnknownFVar), "the declaration is gone outside the scope")
}

func TestIsTypeAndIsProp(t *testing.T) {
	m := newMeta(t)
	ok, err := m.IsType(nat)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsType(expr.MkNatLit(1))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.IsProp(expr.MkForall("p", expr.BinderDefault, expr.MkProp(), expr.MkBVar(0)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsProp(nat)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistrySlots(t *testing.T) {
	m := meta.New(testEnv(t), meta.NewRegistry(), nil, nil)

	_, err := m.Whnf(nat)
	assert.True(t, meta.IsKind(err, meta.KindRegistryUninitialized))
	assert.Contains(t, err.Error(), "whnf")
	_, err = m.InferType(nat)
	assert.True(t, meta.IsKind(err, meta.KindRegistryUninitialized))
	_, err = m.IsExprDefEq(nat, nat)
	assert.True(t, meta.IsKind(err, meta.KindRegistryUninitialized))
	_, err = m.SynthPending("x")
	assert.True(t, meta.IsKind(err, meta.KindRegistryUninitialized))

	reg := meta.NewRegistry()
	assert.False(t, reg.IsRegistered(meta.SlotWhnf))
	require.NoError(t, reg.RegisterWhnf(reduce.Whnf))
	assert.True(t, reg.IsRegistered(meta.SlotWhnf))
	err = reg.RegisterWhnf(reduce.Whnf)
	assert.True(t, meta.IsKind(err, meta.KindRegistrySlotTaken))
	assert.False(t, reg.IsRegistered(meta.SlotInferType))
}

func TestRecursionLimit(t *testing.T) {
	reg := meta.NewRegistry()
	require.NoError(t, reg.RegisterWhnf(func(m *meta.Meta, e expr.Expr) (expr.Expr, error) {
		return m.Whnf(expr.MkApp(e, nat))
	}))
	opts := config.DefaultOptions()
	opts.MaxRecDepth = config.MinMaxRecDepth
	m := meta.New(testEnv(t), reg, opts, nil)

	_, err := m.Whnf(fnF)
	require.Error(t, err)
	assert.True(t, meta.IsKind(err, meta.KindRecursionLimit))
	assert.Contains(t, err.Error(), "maximum recursion depth")
}

func TestExceptionMessageIsCapturedAtThrowTime(t *testing.T) {
	m := newMeta(t).WithRef(meta.SourceRef{File: "a.lean", Line: 3, Col: 7})
	mv := m.MkFreshExprMVar(typ, mctx.Natural, "T")

	_, err := m.InstantiateForall(mv, []expr.Expr{expr.MkNatLit(1)})
	require.Error(t, err)
	require.NoError(t, m.AssignExprMVar(mvarID(mv), nat))

	msg := err.Error()
	assert.Contains(t, msg, "a.lean:3:7: ")
	assert.Contains(t, msg, "too many arguments")
	assert.NotContains(t, msg, "Nat", "rendered against the context at throw time")

	var ex *meta.Exception
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, meta.KindOther, ex.Kind)
	assert.Equal(t, msg, ex.Error(), "rendering is memoized")
}

func TestExceptionWrapsLowerLayerErrors(t *testing.T) {
	m := newMeta(t)
	err := m.AssignExprMVar("ghost", nat)
	var ex *meta.Exception
	require.ErrorAs(t, err, &ex)
	var mErr *mctx.Error
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, mctx.ErrUnknownMVar, mErr.Kind)
	assert.Equal(t, mErr.Error(), ex.Error())
}
