package rbtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func intCmp(a, b int) int { return a - b }

func TestTreeInsertAscendsInOrder(t *testing.T) {
	tr := New[int](intCmp)
	vals := []int{5, 3, 8, 1, 4, 7, 9, 2, 6}
	for _, v := range vals {
		tr.Insert(v)
	}
	require.Equal(t, len(vals), tr.Len())

	var got []int
	tr.Ascend(func(v int) bool {
		got = append(got, v)
		return true
	})
	sort.Ints(vals)
	require.Equal(t, vals, got)
}

func TestTreeCeilingFloor(t *testing.T) {
	tr := New[int](intCmp)
	for _, v := range []int{10, 20, 30, 40} {
		tr.Insert(v)
	}

	v, ok := tr.Ceiling(25)
	require.True(t, ok)
	require.Equal(t, 30, v)

	v, ok = tr.Ceiling(10)
	require.True(t, ok)
	require.Equal(t, 10, v)

	_, ok = tr.Ceiling(41)
	require.False(t, ok)

	v, ok = tr.Floor(25)
	require.True(t, ok)
	require.Equal(t, 20, v)

	_, ok = tr.Floor(5)
	require.False(t, ok)
}

func TestTreeSuccessorPredecessor(t *testing.T) {
	tr := New[int](intCmp)
	for _, v := range []int{10, 20, 30} {
		tr.Insert(v)
	}
	v, ok := tr.Successor(10)
	require.True(t, ok)
	require.Equal(t, 20, v)

	_, ok = tr.Successor(30)
	require.False(t, ok)

	v, ok = tr.Predecessor(30)
	require.True(t, ok)
	require.Equal(t, 20, v)
}

func TestTreeDeleteMaintainsOrder(t *testing.T) {
	tr := New[int](intCmp)
	rng := rand.New(rand.NewSource(1))
	vals := rng.Perm(200)
	for _, v := range vals {
		tr.Insert(v)
	}

	for i := 0; i < 100; i++ {
		require.True(t, tr.Delete(vals[i]))
	}
	require.Equal(t, 100, tr.Len())

	var got []int
	tr.Ascend(func(v int) bool {
		got = append(got, v)
		return true
	})
	require.Len(t, got, 100)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1], got[i])
	}
}

func TestTreeDeleteMin(t *testing.T) {
	tr := New[int](intCmp)
	for _, v := range []int{5, 3, 8, 1} {
		tr.Insert(v)
	}
	v, ok := tr.DeleteMin()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 3, tr.Len())
}
