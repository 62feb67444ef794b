package timerq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextDeadlineReflectsEarliestLiveEntry(t *testing.T) {
	m := New(5000)
	_, ok := m.NextDeadline()
	require.False(t, ok)

	m.Refresh("a", 1000)
	m.Refresh("b", 2000)

	deadline, ok := m.NextDeadline()
	require.True(t, ok)
	require.EqualValues(t, 6000, deadline) // a's deadline: 1000+5000
}

func TestProcessFiresOnlyDueEntriesInOrder(t *testing.T) {
	m := New(5000)
	m.Refresh("a", 0)
	m.Refresh("b", 1000)
	m.Refresh("c", 2000)

	var fired []string
	m.Process(6500, func(connID string) { fired = append(fired, connID) })
	require.Equal(t, []string{"a", "b"}, fired)

	deadline, ok := m.NextDeadline()
	require.True(t, ok)
	require.EqualValues(t, 7000, deadline) // c's deadline: 2000+5000
}

func TestRefreshMovesConnectionToBackAndRearms(t *testing.T) {
	m := New(5000)
	m.Refresh("a", 0)
	m.Refresh("b", 100)

	// a is refreshed well after b, so it should no longer fire first.
	m.Refresh("a", 4000)

	var fired []string
	m.Process(5200, func(connID string) { fired = append(fired, connID) })
	require.Equal(t, []string{"b"}, fired)

	_, ok := m.NextDeadline()
	require.True(t, ok) // a is still armed, due at 9000
}

func TestRemoveDisarmsAndEntryIsDroppedWithoutFiring(t *testing.T) {
	m := New(5000)
	m.Refresh("a", 0)
	m.Remove("a")

	var fired []string
	m.Process(10000, func(connID string) { fired = append(fired, connID) })
	require.Empty(t, fired)

	_, ok := m.NextDeadline()
	require.False(t, ok)
}

func TestStaleRefreshIsDroppedNotDoubleFired(t *testing.T) {
	m := New(1000)
	m.Refresh("a", 0)
	m.Refresh("a", 0) // same connID refreshed twice before either is due

	var fired []string
	m.Process(5000, func(connID string) { fired = append(fired, connID) })
	require.Equal(t, []string{"a"}, fired)
}
