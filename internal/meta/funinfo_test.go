package meta_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

func TestGetFunInfo(t *testing.T) {
	m := newMeta(t)
	idZero := expr.MkConst("id", expr.LevelZeroVal)

	tests := []struct {
		name string
		fn   expr.Expr
		n    int
		want *meta.FunInfo
	}{
		{"polymorphic identity", idZero, meta.Unbounded, &meta.FunInfo{
			ParamInfo: []meta.ParamInfo{
				{BinderInfo: expr.BinderImplicit, HasFwdDeps: true},
				{BinderInfo: expr.BinderDefault, BackDeps: []int{0}},
			},
			ResultDeps: []int{0},
		}},
		{"first argument only", idZero, 1, &meta.FunInfo{
			ParamInfo:  []meta.ParamInfo{{BinderInfo: expr.BinderImplicit, HasFwdDeps: true}},
			ResultDeps: []int{0},
		}},
		{"non-dependent", expr.MkConst("f"), meta.Unbounded, &meta.FunInfo{
			ParamInfo: []meta.ParamInfo{{BinderInfo: expr.BinderDefault}, {BinderInfo: expr.BinderDefault}},
		}},
		{"not a function", nat, meta.Unbounded, &meta.FunInfo{ParamInfo: []meta.ParamInfo{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fi, err := m.GetFunInfoNArgs(tt.fn, tt.n)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, fi); diff != "" {
				t.Errorf("GetFunInfo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetFunInfoIsCached(t *testing.T) {
	m := newMeta(t)
	idZero := expr.MkConst("id", expr.LevelZeroVal)
	a, err := m.GetFunInfo(idZero)
	require.NoError(t, err)
	b, err := m.GetFunInfo(idZero)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, m.Cache().Sizes()["funInfo"])

	_, err = m.GetFunInfoNArgs(idZero, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Cache().Sizes()["funInfo"], "the argument bound is part of the key")

	d, err := m.WithTransparency(meta.TransparencyAll).GetFunInfo(idZero)
	require.NoError(t, err)
	assert.Equal(t, a, d)
	assert.Equal(t, 3, m.Cache().Sizes()["funInfo"], "so is the transparency")
}

func TestGetFunInfoResultsDoNotAliasTheCache(t *testing.T) {
	m := newMeta(t)
	idZero := expr.MkConst("id", expr.LevelZeroVal)
	a, err := m.GetFunInfo(idZero)
	require.NoError(t, err)
	a.ParamInfo[0].HasFwdDeps = false
	a.ParamInfo[1].BackDeps[0] = 7
	a.ResultDeps[0] = 7

	b, err := m.GetFunInfo(idZero)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.True(t, b.ParamInfo[0].HasFwdDeps)
	assert.Equal(t, []int{0}, b.ParamInfo[1].BackDeps)
	assert.Equal(t, []int{0}, b.ResultDeps)
}

func TestGetFunInfoReducesType(t *testing.T) {
	m := newMeta(t)
	_, err := m.MkAuxDefinition("succFn", expr.MkConst("NatFun"), expr.MkConst("Nat.succ"))
	require.NoError(t, err)

	fi, err := m.WithReducible().GetFunInfo(expr.MkConst("succFn"))
	require.NoError(t, err)
	require.Len(t, fi.ParamInfo, 1, "types are reduced at default transparency or above")
	assert.True(t, fi.ParamInfo[0].IsExplicit())
	assert.False(t, fi.ParamInfo[0].IsInstImplicit())
}

func TestGetFunInfoUnknownConstant(t *testing.T) {
	m := newMeta(t)
	_, err := m.GetFunInfo(expr.MkConst("missing"))
	assert.True(t, meta.IsKind(err, meta.KindUnknownConstant))
}
