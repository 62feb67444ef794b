package zset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertReportsAddedThenUpdated(t *testing.T) {
	z := New()
	require.Equal(t, Added, z.Insert("bob", 10))
	require.Equal(t, Updated, z.Insert("bob", 20))
	score, ok := z.Score("bob")
	require.True(t, ok)
	require.Equal(t, 20.0, score)
}

func TestRangeOrdersByScore(t *testing.T) {
	z := New()
	z.Insert("bob", 10)
	z.Insert("alice", 5)
	require.Equal(t, []string{"alice", "bob"}, z.Range(0, 10))
}

func TestUpdatedScoreExcludedFromStaleLowerBound(t *testing.T) {
	z := New()
	z.Insert("k", 1)
	z.Insert("k", 2)
	require.NotContains(t, z.Range(0, 10), "")
	members := z.Range(3, 10)
	require.NotContains(t, members, "k")
	members = z.Range(2, 10)
	require.Contains(t, members, "k")
}

func TestEraseRemovesFromBothStructures(t *testing.T) {
	z := New()
	z.Insert("bob", 10)
	require.True(t, z.Erase("bob"))
	require.False(t, z.Erase("bob"))
	require.Empty(t, z.Range(0, 10))
}

func TestEveryMemberHasExactlyOneSkiplistNode(t *testing.T) {
	z := New()
	for i := 0; i < 50; i++ {
		z.Insert("m", float64(i)) // repeatedly rescore the same member
	}
	require.Equal(t, 1, z.order.Len())
}
