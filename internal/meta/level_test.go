package meta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

func lmvarID(l expr.Level) expr.LMVarID { return l.(*expr.LevelMVar).ID }

func TestIsLevelDefEq(t *testing.T) {
	one, two := expr.LevelOne, expr.LevelOfNat(2)
	u, v := expr.MkLevelParam("u"), expr.MkLevelParam("v")

	tests := []struct {
		name string
		lhs  expr.Level
		rhs  expr.Level
		want bool
	}{
		{"equal constants", two, two, true},
		{"different constants", one, expr.LevelZeroVal, false},
		{"distinct params", u, v, false},
		{"succ of the same param", expr.MkLevelSucc(u), expr.MkLevelSucc(u), true},
		{"offsets of a param", expr.MkLevelSucc(u), expr.MkLevelSucc(expr.MkLevelSucc(u)), false},
		{"max simplifies", expr.MkLevelMax(one, expr.LevelZeroVal), one, true},
		{"imax of zero", expr.MkLevelIMax(u, expr.LevelZeroVal), expr.LevelZeroVal, true},
		{"succ against max of succs", expr.MkLevelSucc(expr.MkLevelMax(u, v)), expr.MkLevelMax(expr.MkLevelSucc(u), expr.MkLevelSucc(v)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMeta(t)
			ok, err := m.IsLevelDefEq(tt.lhs, tt.rhs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Empty(t, m.Postponed())
		})
	}
}

func TestIsLevelDefEqAssigns(t *testing.T) {
	m := newMeta(t)
	u := m.MkFreshLevelMVar()
	ok, err := m.IsLevelDefEq(expr.MkLevelSucc(u), expr.LevelOfNat(2))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, expr.LevelEqual(expr.LevelOne, m.InstantiateLevelMVars(u)))

	a, b := m.MkFreshLevelMVar(), m.MkFreshLevelMVar()
	ok, err = m.IsLevelDefEq(expr.LevelZeroVal, expr.MkLevelMax(a, b))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, expr.IsZero(m.InstantiateLevelMVars(a)))
	assert.True(t, expr.IsZero(m.InstantiateLevelMVars(b)))

	ok, err = m.IsLevelsDefEq([]expr.Level{expr.LevelOne}, []expr.Level{expr.LevelOne, expr.LevelOne})
	require.NoError(t, err)
	assert.False(t, ok, "length mismatch")
}

func TestIsLevelDefEqSelfMax(t *testing.T) {
	m := newMeta(t)
	u := m.MkFreshLevelMVar()
	ok, err := m.IsLevelDefEq(u, expr.MkLevelMax(u, expr.LevelOne))
	require.NoError(t, err)
	assert.True(t, ok)

	mx, isMax := m.MCtx().InstantiateLevelMVars(u).(*expr.LevelMax)
	require.True(t, isMax, "?u := max ?w 1")
	assert.Equal(t, expr.LevelMVarKind, mx.Lhs.Kind())
	assert.True(t, expr.LevelEqual(expr.LevelOne, mx.Rhs))
}

func TestIsLevelDefEqReadOnly(t *testing.T) {
	m := newMeta(t)
	u := m.MkFreshLevelMVar()
	ok, err := meta.WithNewMCtxDepth(m, func(m *meta.Meta) (bool, error) {
		return m.IsLevelDefEq(u, expr.LevelOne)
	})
	require.NoError(t, err)
	assert.False(t, ok, "outer universe metavariables cannot be solved or postponed")
	assert.False(t, m.MCtx().IsLevelAssigned(lmvarID(u)))
}

func TestPostponedConstraintsAreSolvedLater(t *testing.T) {
	m := newMeta(t)
	u, v := m.MkFreshLevelMVar(), m.MkFreshLevelMVar()

	ok, err := m.IsLevelDefEq(expr.MkLevelMax(u, v), expr.LevelOne)
	require.NoError(t, err)
	assert.True(t, ok, "stuck constraints count as success")
	require.Len(t, m.Postponed(), 1)

	require.NoError(t, m.AssignLevelMVar(lmvarID(u), expr.LevelOne))
	require.NoError(t, m.AssignLevelMVar(lmvarID(v), expr.LevelZeroVal))

	ok, err = m.ProcessPostponed(false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, m.Postponed())
}

func TestProcessPostponedStuck(t *testing.T) {
	m := newMeta(t)
	u, v := m.MkFreshLevelMVar(), m.MkFreshLevelMVar()
	m.PostponeLevelDefEq(expr.MkLevelMax(u, v), expr.LevelOne)

	ok, err := m.ProcessPostponed(true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, m.Postponed(), 1, "still stuck, still queued")

	ok, err = m.ProcessPostponed(false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessPostponedMakesProgress(t *testing.T) {
	m := newMeta(t)
	u := m.MkFreshLevelMVar()
	m.PostponeLevelDefEq(u, expr.LevelOfNat(2))
	ok, err := m.ProcessPostponed(false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, expr.LevelEqual(expr.LevelOfNat(2), m.InstantiateLevelMVars(u)))

	m.PostponeLevelDefEq(expr.LevelOne, expr.LevelZeroVal)
	ok, err = m.ProcessPostponed(true)
	require.NoError(t, err)
	assert.False(t, ok, "a constraint that is false fails even when postponing is allowed")
}

func TestPostponedSnapshotsAreIsolated(t *testing.T) {
	m := newMeta(t)
	a := m.MkFreshLevelMVar()
	m.PostponeLevelDefEq(a, expr.LevelOne)
	saved := m.SaveState()

	m.PostponeLevelDefEq(a, expr.LevelOfNat(2))
	require.Len(t, m.Postponed(), 2)

	m.Restore(saved)
	require.Len(t, m.Postponed(), 1)
	m.PostponeLevelDefEq(a, expr.LevelOfNat(3))

	require.Len(t, saved.Postponed, 1)
	assert.True(t, expr.LevelEqual(expr.LevelOne, saved.Postponed[0].Rhs))
	assert.True(t, expr.LevelEqual(expr.LevelOfNat(3), m.Postponed()[1].Rhs))

	_, err := meta.WithNewMCtxDepth(m, func(m *meta.Meta) (bool, error) {
		assert.Empty(t, m.Postponed(), "a new depth starts with an empty queue")
		m.PostponeLevelDefEq(m.MkFreshLevelMVar(), expr.LevelOne)
		return true, nil
	})
	require.NoError(t, err)
	assert.Len(t, m.Postponed(), 2)
}

func TestPostponedKeepsSourceRef(t *testing.T) {
	ref := meta.SourceRef{File: "a.lean", Line: 1, Col: 2}
	m := newMeta(t).WithRef(ref)
	u, v := m.MkFreshLevelMVar(), m.MkFreshLevelMVar()
	ok, err := m.IsLevelDefEq(expr.MkLevelMax(u, v), expr.LevelOne)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, m.Postponed(), 1)
	assert.Equal(t, ref, m.Postponed()[0].Ref)
}
