package pmap

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strMap = Map[string, int, Str[string]]

// collide sends every key to the same bucket.
type collide struct{}

func (collide) Hash(string) uint32     { return 7 }
func (collide) Equal(a, b string) bool { return a == b }

func TestNilMapIsEmpty(t *testing.T) {
	var m *strMap
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Contains("a"))
	assert.Same(t, m, m.Remove("a"))
	assert.Empty(t, m.Keys())

	m2 := m.Put("a", 1)
	v, ok := m2.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPutIsPersistent(t *testing.T) {
	m0 := New[string, int, Str[string]]()
	m1 := m0.Put("x", 1)
	m2 := m1.Put("x", 2).Put("y", 3)

	assert.Equal(t, 0, m0.Len())
	assert.Equal(t, 1, m1.Len())
	assert.Equal(t, 2, m2.Len())

	v, _ := m1.Get("x")
	assert.Equal(t, 1, v, "older versions are untouched")
	v, _ = m2.Get("x")
	assert.Equal(t, 2, v)
}

func TestManyKeys(t *testing.T) {
	var m *Map[int, string, Int[int]]
	const n = 5000
	for i := 0; i < n; i++ {
		m = m.Put(i, fmt.Sprint(i))
	}
	require.Equal(t, n, m.Len())
	for i := 0; i < n; i++ {
		v, ok := m.Get(i)
		require.True(t, ok, "key %d", i)
		require.Equal(t, fmt.Sprint(i), v)
	}

	full := m
	for i := 0; i < n; i += 2 {
		m = m.Remove(i)
	}
	assert.Equal(t, n/2, m.Len())
	assert.Equal(t, n, full.Len())
	assert.False(t, m.Contains(10))
	assert.True(t, m.Contains(11))
	assert.True(t, full.Contains(10))
}

func TestRemoveMissingKeepsMap(t *testing.T) {
	m := New[string, int, Str[string]]().Put("a", 1)
	assert.Same(t, m, m.Remove("b"))
}

func TestCollisionBucket(t *testing.T) {
	var m *Map[string, int, collide]
	m = m.Put("a", 1).Put("b", 2).Put("c", 3)
	require.Equal(t, 3, m.Len())

	m = m.Put("b", 20)
	assert.Equal(t, 3, m.Len())
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 20, v)

	m = m.Remove("a")
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.Contains("a"))
	assert.True(t, m.Contains("c"))

	m = m.Remove("b").Remove("c")
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Contains("c"))
}

func TestRangeStopsEarly(t *testing.T) {
	m := New[string, int, Str[string]]().Put("a", 1).Put("b", 2).Put("c", 3)

	keys := m.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestPopcount(t *testing.T) {
	assert.Equal(t, 0, popcount(0))
	assert.Equal(t, 32, popcount(0xffffffff))
	assert.Equal(t, 3, popcount(0b1011))
}
