// Package timerq implements the idle-connection timeout queue of spec.md
// section 4.I. Grounded on the source repository's conn_manager.hpp/.cpp
// TimerManager (a FIFO of per-connection Timer entries, refreshed by
// moving a connection to the back of the queue and swept from the
// front), backed here by github.com/edwingeng/deque/v2 the way
// jsp-lqk-metapipe-memcached's TCP client uses it as its pending-request
// queue.
//
// deque/v2's Deque exposes push/pop at both ends but no peek, so a
// refreshed connection cannot simply have its existing slot's deadline
// bumped in place. Manager instead gives every Refresh call a new
// sequence number and lazily drops any popped entry whose sequence no
// longer matches the connection's latest one, rather than searching the
// queue for it.
package timerq

import (
	"github.com/edwingeng/deque/v2"
)

type entry struct {
	connID     string
	seq        uint64
	deadlineMS int64
}

// Manager is a FIFO of idle-timeout deadlines, one slot per Refresh call.
// Deadlines are non-decreasing in queue order because idleTimeoutMS is
// fixed, so sweeping and peeking only ever need to look at the front.
type Manager struct {
	idleTimeoutMS int64
	dq            *deque.Deque[entry]
	latest        map[string]uint64
	nextSeq       uint64
}

// New creates a Manager using the given fixed idle timeout.
func New(idleTimeoutMS int64) *Manager {
	return &Manager{
		idleTimeoutMS: idleTimeoutMS,
		dq:            deque.NewDeque[entry](),
		latest:        make(map[string]uint64),
	}
}

// Refresh (re)arms connID's idle timer for idleTimeoutMS from nowMS,
// moving it to the back of the queue. A connID with no prior entry is
// added for the first time.
func (m *Manager) Refresh(connID string, nowMS int64) {
	m.nextSeq++
	seq := m.nextSeq
	m.latest[connID] = seq
	m.dq.PushBack(entry{connID: connID, seq: seq, deadlineMS: nowMS + m.idleTimeoutMS})
}

// Remove disarms connID's idle timer. Its queue slot, if any, is dropped
// lazily the next time it reaches the front.
func (m *Manager) Remove(connID string) {
	delete(m.latest, connID)
}

// NextDeadline returns the soonest live deadline in the queue, used by
// the event loop to compute its poll timeout (spec.md section 4.I's
// get_next_timer).
func (m *Manager) NextDeadline() (int64, bool) {
	for m.dq.Len() > 0 {
		e := m.dq.PopFront()
		if m.latest[e.connID] != e.seq {
			continue
		}
		m.dq.PushFront(e)
		return e.deadlineMS, true
	}
	return 0, false
}

// Process pops every live entry due by nowMS, calling onTimeout for each
// one's connID and disarming it. Stale entries (superseded by a later
// Refresh, or removed) are dropped without invoking onTimeout. Mirrors
// process_timers, called once per event-loop tick (spec.md section 4.J
// step 5).
func (m *Manager) Process(nowMS int64, onTimeout func(connID string)) {
	for m.dq.Len() > 0 {
		e := m.dq.PopFront()
		if m.latest[e.connID] != e.seq {
			continue
		}
		if e.deadlineMS > nowMS {
			m.dq.PushFront(e)
			return
		}
		delete(m.latest, e.connID)
		onTimeout(e.connID)
	}
}
