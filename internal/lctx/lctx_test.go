package lctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/metakernel/internal/expr"
)

var nat = expr.MkConst("Nat")

// natCtx is x : Nat, n : Nat := 3, h : P x.
func natCtx() *LocalContext {
	return Empty().
		MkLocalDecl("x", "x", nat, expr.BinderDefault).
		MkLetDecl("n", "n", nat, expr.MkNatLit(3), false).
		MkLocalDecl("h", "h", expr.MkApp(expr.MkConst("P"), expr.MkFVar("x")), expr.BinderInstImplicit)
}

func TestDeclarationsAreOrdered(t *testing.T) {
	lc := natCtx()
	require.Equal(t, 3, lc.Len())
	assert.Equal(t, 3, lc.NumIndices())
	assert.False(t, lc.IsEmpty())
	assert.True(t, Empty().IsEmpty())

	var names []expr.Name
	for _, d := range lc.Decls() {
		names = append(names, d.UserName)
	}
	assert.Equal(t, []expr.Name{"x", "n", "h"}, names)

	n, ok := lc.Find("n")
	require.True(t, ok)
	assert.True(t, n.IsLet())
	assert.Equal(t, 1, n.Index)

	d, ok := lc.FindFVar(expr.MkFVar("h"))
	require.True(t, ok)
	assert.Equal(t, expr.BinderInstImplicit, d.BinderInfo)
	_, ok = lc.FindFVar(nat)
	assert.False(t, ok)
}

func TestUpdatesArePersistent(t *testing.T) {
	lc := natCtx()
	erased := lc.Erase("n")
	assert.Equal(t, 2, erased.Len())
	assert.Equal(t, 3, erased.NumIndices(), "indices are never reused")
	assert.True(t, lc.Contains("n"))
	assert.False(t, erased.Contains("n"))
	assert.Same(t, lc, lc.Erase("missing"))

	retyped := lc.ModifyType("x", expr.MkType())
	d, _ := retyped.Find("x")
	assert.True(t, expr.Equal(expr.MkType(), d.Type))
	d, _ = lc.Find("x")
	assert.True(t, expr.Equal(nat, d.Type))

	assert.True(t, erased.IsSubPrefixOf(lc))
	assert.False(t, lc.IsSubPrefixOf(erased))
}

func TestFindFromUserNamePrefersLatest(t *testing.T) {
	lc := natCtx().MkLocalDecl("x2", "x", expr.MkType(), expr.BinderDefault)
	d, ok := lc.FindFromUserName("x")
	require.True(t, ok)
	assert.Equal(t, expr.FVarID("x2"), d.FVarID)
	_, ok = lc.FindFromUserName("y")
	assert.False(t, ok)

	n, ok := lc.UserNameOf("x2")
	require.True(t, ok)
	assert.Equal(t, expr.Name("x"), n)
}

func TestForEachFromSkipsErased(t *testing.T) {
	lc := natCtx().Erase("n")
	var seen []expr.FVarID
	lc.ForEachFrom(1, func(d *LocalDecl) bool {
		seen = append(seen, d.FVarID)
		return true
	})
	assert.Equal(t, []expr.FVarID{"h"}, seen)
	assert.True(t, lc.Any([]expr.Expr{expr.MkFVar("n"), expr.MkFVar("h")}))
	assert.False(t, lc.Any([]expr.Expr{expr.MkFVar("n")}))
}

func TestMkBinding(t *testing.T) {
	lc := natCtx()
	xs := lc.FVars()
	body := expr.MkAppN(expr.MkConst("f"), xs...)

	pi := lc.MkBinding(false, xs, body)
	assert.Equal(t, "∀ (x : Nat), let n : Nat := 3; ∀ [h : P x], f x n h", pi.String())

	lam := lc.MkBinding(true, xs[:1], expr.MkApp(expr.MkConst("g"), xs[0]))
	assert.Equal(t, "fun (x : Nat) => g x", lam.String())
}

func TestLocalInstances(t *testing.T) {
	h, k := expr.MkFVar("h"), expr.MkFVar("k")
	var insts LocalInstances
	a := insts.Push(LocalInstance{ClassName: "Monad", FVar: h})
	b := a.Push(LocalInstance{ClassName: "Inhabited", FVar: k})
	c := a.Push(LocalInstance{ClassName: "Monad", FVar: k})

	assert.Len(t, a, 1)
	assert.Equal(t, expr.Name("Inhabited"), b[1].ClassName, "pushing onto a shared prefix never clobbers")
	assert.True(t, b.Contains(k))
	assert.False(t, a.Contains(k))

	assert.True(t, b.Erase([]expr.Expr{k}).Equal(a))
	assert.False(t, b.Equal(c))
	assert.Empty(t, a.Erase([]expr.Expr{h}))
}
