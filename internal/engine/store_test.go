package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetDelRoundTrip(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"))
	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	require.True(t, s.Del("a"))
	_, ok = s.Get("a")
	require.False(t, ok)
}

func TestExpireThenGetYieldsAbsent(t *testing.T) {
	s := New()
	s.Set("x", []byte("hello"))
	now := int64(1_000_000)
	require.EqualValues(t, 1, s.Expire("x", 1, now))

	require.Equal(t, 0, s.ExpireDue(now+500))
	_, ok := s.Get("x")
	require.True(t, ok)

	require.Equal(t, 1, s.ExpireDue(now+1500))
	_, ok = s.Get("x")
	require.False(t, ok)
}

func TestExpireNegativeTTLEqualsPersist(t *testing.T) {
	s := New()
	s.Set("x", []byte("v"))
	now := int64(1000)
	s.Expire("x", 10, now)
	require.NotEqualValues(t, -1, s.TTLSeconds("x", now))
	s.Expire("x", -1, now)
	require.EqualValues(t, -1, s.TTLSeconds("x", now))
}

func TestExpireOnMissingKeyIsExpiredSentinel(t *testing.T) {
	s := New()
	require.EqualValues(t, -2, s.Expire("missing", 10, 0))
	require.EqualValues(t, -2, s.Persist("missing"))
	require.EqualValues(t, -2, s.TTLSeconds("missing", 0))
}

func TestSetPreservesPriorTTL(t *testing.T) {
	s := New()
	s.Set("k", []byte("1"))
	s.Expire("k", 10, 0)
	s.Set("k", []byte("2"))
	require.EqualValues(t, 10, s.TTLSeconds("k", 0))

	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

func TestZAddZRemZRange(t *testing.T) {
	s := New()
	require.EqualValues(t, 1, s.ZAdd("bob", 10))
	require.EqualValues(t, 0, s.ZAdd("bob", 20))
	require.EqualValues(t, 1, s.ZAdd("alice", 5))

	require.Equal(t, []string{"alice", "bob"}, s.ZRange(0, 10))

	require.EqualValues(t, 1, s.ZRem("bob"))
	require.EqualValues(t, 0, s.ZRem("bob"))
	require.Equal(t, []string{"alice"}, s.ZRange(0, 10))
}

func TestZRangeExcludesLowerScoreAfterRescore(t *testing.T) {
	s := New()
	s.ZAdd("k", 1)
	s.ZAdd("k", 2)
	require.NotContains(t, s.ZRange(5, 10), "k")
	require.Contains(t, s.ZRange(0, 10), "k")
}
