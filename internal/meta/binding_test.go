package meta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/metakernel/internal/env"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
	"github.com/funvibe/metakernel/internal/mctx"
)

func TestMkBindingEmptyIsIdentity(t *testing.T) {
	m := newMeta(t)
	e := expr.MkApp(expr.MkConst("Nat.succ"), expr.MkNatLit(0))
	for _, mk := range []func([]expr.Expr, expr.Expr) (expr.Expr, error){
		m.MkForallFVars, m.MkLambdaFVars, m.MkLetFVars, m.MkForallUsedOnly, m.ElimMVarDeps,
	} {
		r, err := mk(nil, e)
		require.NoError(t, err)
		assert.Same(t, e, r)
	}
}

func TestMkLambdaFVarsRevertsDependentMVars(t *testing.T) {
	m := newMeta(t)
	var mv expr.Expr
	lam, err := meta.WithLocalDecl(m, "x", expr.BinderDefault, nat, func(m *meta.Meta, x expr.Expr) (expr.Expr, error) {
		mv = m.MkFreshExprMVar(nat, mctx.Natural, "h")
		return m.MkLambdaFVars([]expr.Expr{x}, expr.MkAppN(expr.MkConst("f"), x, mv))
	})
	require.NoError(t, err)

	l, ok := lam.(*expr.Lam)
	require.True(t, ok, "got %s", lam)
	assert.True(t, expr.Equal(nat, l.BinderType))
	args := expr.GetAppArgs(l.Body)
	require.Len(t, args, 2)
	assert.True(t, expr.Equal(expr.MkBVar(0), args[0]))

	aux, ok := expr.GetAppFn(args[1]).(*expr.MVar)
	require.True(t, ok, "the metavariable is replaced by an auxiliary one applied to x")
	assert.True(t, expr.Equal(expr.MkApp(aux, expr.MkBVar(0)), args[1]))

	assert.True(t, m.MCtx().IsExprAssigned(mvarID(mv)))
	d, err := m.GetMVarDecl(aux.ID)
	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.MkArrow(nat, nat), d.Type), "got %s", d.Type)
	assert.True(t, d.LCtx.IsEmpty(), "x is no longer in scope of the auxiliary metavariable")
}

func TestMkForallFVarsWithDependentBinders(t *testing.T) {
	m := newMeta(t)
	pi, err := meta.WithLocalDecl(m, "A", expr.BinderImplicit, typ, func(m *meta.Meta, a expr.Expr) (expr.Expr, error) {
		return meta.WithLocalDecl(m, "a", expr.BinderDefault, a, func(m *meta.Meta, x expr.Expr) (expr.Expr, error) {
			return m.MkForallFVars([]expr.Expr{a, x}, a)
		})
	})
	require.NoError(t, err)
	want := expr.MkForall("A", expr.BinderImplicit, typ, expr.MkForall("a", expr.BinderDefault, expr.MkBVar(0), expr.MkBVar(1)))
	assert.True(t, expr.EqualStrict(want, pi), "got %s", pi)
}

func TestMkBindingRevertOrderFailure(t *testing.T) {
	m := newMeta(t)
	_, err := meta.WithLocalDecl(m, "A", expr.BinderDefault, typ, func(m *meta.Meta, a expr.Expr) (expr.Expr, error) {
		return meta.WithLocalDecl(m, "a", expr.BinderDefault, a, func(m *meta.Meta, x expr.Expr) (expr.Expr, error) {
			return m.MkForallFVars([]expr.Expr{x, a}, nat)
		})
	})
	require.Error(t, err)
	assert.True(t, meta.IsKind(err, meta.KindBinderConstruction))
	var rf *mctx.RevertFailure
	assert.ErrorAs(t, err, &rf)
}

func TestMkLetFVarsDropsUnusedLets(t *testing.T) {
	m := newMeta(t)
	r, err := meta.WithLetDecl(m, "y", nat, expr.MkNatLit(2), func(m *meta.Meta, y expr.Expr) (expr.Expr, error) {
		return m.MkLetFVars([]expr.Expr{y}, nat)
	})
	require.NoError(t, err)
	assert.True(t, expr.Equal(nat, r))

	r, err = meta.WithLocalDecl(m, "x", expr.BinderDefault, nat, func(m *meta.Meta, x expr.Expr) (expr.Expr, error) {
		return m.MkForallUsedOnly([]expr.Expr{x}, nat)
	})
	require.NoError(t, err)
	assert.True(t, expr.Equal(nat, r))
}

func TestElimMVarDeps(t *testing.T) {
	m := newMeta(t)
	_, err := meta.WithLocalDecl(m, "x", expr.BinderDefault, nat, func(m *meta.Meta, x expr.Expr) (bool, error) {
		mv := m.MkFreshExprMVar(nat, mctx.Natural, "h")
		r, err := m.ElimMVarDeps([]expr.Expr{x}, mv)
		if err != nil {
			return false, err
		}
		app, ok := r.(*expr.App)
		require.True(t, ok, "got %s", r)
		assert.True(t, expr.Equal(x, app.Arg))
		assert.True(t, expr.Equal(r, m.InstantiateMVars(mv)))

		plain := expr.MkApp(expr.MkConst("Nat.succ"), x)
		same, err := m.ElimMVarDeps([]expr.Expr{x}, plain)
		assert.Same(t, plain, same, "terms without metavariables are untouched")
		return true, err
	})
	require.NoError(t, err)
}

func TestMkAuxDefinitionClosesOverFVarsAndMVars(t *testing.T) {
	m := newMeta(t)
	var x, mv expr.Expr
	r, err := meta.WithLocalDecl(m, "x", expr.BinderDefault, nat, func(m *meta.Meta, fx expr.Expr) (expr.Expr, error) {
		x = fx
		mv = m.MkFreshExprMVar(nat, mctx.Natural, "h")
		return m.MkAuxDefinition("aux", nat, expr.MkAppN(expr.MkConst("f"), x, mv))
	})
	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.MkAppN(expr.MkConst("aux"), x, mv), r), "got %s", r)

	c, ok := m.Env().Find("aux")
	require.True(t, ok)
	assert.Equal(t, env.DefnKind, c.Kind)
	assert.Empty(t, c.LevelParams)
	wantType := expr.MkForall("x", expr.BinderDefault, nat, expr.MkForall("h", expr.BinderDefault, nat, nat))
	wantValue := expr.MkLambda("x", expr.BinderDefault, nat, expr.MkLambda("h", expr.BinderDefault, nat,
		expr.MkAppN(expr.MkConst("f"), expr.MkBVar(1), expr.MkBVar(0))))
	assert.True(t, expr.EqualStrict(wantType, c.Type), "got %s", c.Type)
	assert.True(t, expr.EqualStrict(wantValue, c.Value), "got %s", c.Value)
}

func TestMkAuxDefinitionLevels(t *testing.T) {
	m := newMeta(t)
	u := m.MkFreshLevelMVar()
	r, err := m.MkAuxDefinition("auxSort", expr.MkSort(expr.MkLevelSucc(u)), expr.MkSort(u))
	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.MkConst("auxSort", u), r), "got %s", r)
	c, ok := m.Env().Find("auxSort")
	require.True(t, ok)
	assert.Equal(t, []expr.Name{"u_1"}, c.LevelParams)
	assert.True(t, expr.Equal(expr.MkSort(expr.MkLevelParam("u_1")), c.Value))

	// Names already in use are skipped.
	v := m.MkFreshLevelMVar()
	p := expr.MkLevelParam("u_1")
	r, err = m.MkAuxDefinition("auxMax", expr.MkSort(expr.MkLevelSucc(expr.MkLevelMax(p, v))), expr.MkSort(expr.MkLevelMax(p, v)))
	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.MkConst("auxMax", p, v), r), "got %s", r)
	c, ok = m.Env().Find("auxMax")
	require.True(t, ok)
	assert.Equal(t, []expr.Name{"u_1", "u_2"}, c.LevelParams)
}

func TestMkAuxDefinitionInlinesLets(t *testing.T) {
	m := newMeta(t)
	succ := expr.MkConst("Nat.succ")
	r, err := meta.WithLetDecl(m, "y", nat, expr.MkNatLit(2), func(m *meta.Meta, y expr.Expr) (expr.Expr, error) {
		return m.MkAuxDefinition("three", nat, expr.MkApp(succ, y))
	})
	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.MkConst("three"), r), "got %s", r)
	c, ok := m.Env().Find("three")
	require.True(t, ok)
	assert.True(t, expr.Equal(expr.MkApp(succ, expr.MkNatLit(2)), c.Value))

	w, err := m.Whnf(r)
	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.MkApp(succ, expr.MkNatLit(2)), w), "the new constant is visible to the reducer")
}

func TestMkAuxDefinitionDuplicateName(t *testing.T) {
	m := newMeta(t)
	before := m.Env()
	_, err := m.MkAuxDefinition("Nat", nat, expr.MkNatLit(1))
	require.Error(t, err)
	assert.True(t, meta.IsKind(err, meta.KindOther))
	assert.Same(t, before, m.Env())
}
