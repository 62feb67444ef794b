// Package skiplist implements the probabilistic ordered multiset keyed by
// the composite (score, name) pair that backs sorted-set range queries.
// The node shape (sentinels at +/-infinity, per-level forward/backward
// pointers, eager trimming of empty top levels) is grounded on the
// doubly-linked design original_source/skiplist.hpp describes; the
// descend-then-promote insert algorithm follows the simpler single-key
// skip list in packages/ds/skiplist/skiplist.go, widened to the full
// composite-key, doubly-linked structure spec.md requires.
package skiplist

import (
	"math"
	"math/rand"
	"time"
)

const maxLevel = 32

// node is one skip list element. head and tail are permanent sentinels
// with score -Inf/+Inf respectively; ordinary nodes carry a (score, name)
// pair. forward/backward are sized to the node's promoted level.
type node struct {
	score    float64
	name     string
	forward  []*node
	backward []*node
}

// List is a doubly-linked skip list ordered by (score, name).
type List struct {
	head  *node
	tail  *node
	level int
	rnd   *rand.Rand
}

// New creates an empty skip list, seeding its level-promotion PRNG once
// from the process start time rather than per coin flip (spec.md section
// 9 explicitly calls the latter out as a bug in the source to avoid).
func New() *List {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed creates an empty skip list with a deterministic PRNG seed,
// for reproducible tests.
func NewWithSeed(seed int64) *List {
	head := &node{score: negInf, forward: make([]*node, maxLevel), backward: make([]*node, maxLevel)}
	tail := &node{score: posInf, forward: make([]*node, maxLevel), backward: make([]*node, maxLevel)}
	for i := 0; i < maxLevel; i++ {
		head.forward[i] = tail
		tail.backward[i] = head
	}
	return &List{head: head, tail: tail, level: 1, rnd: rand.New(rand.NewSource(seed))}
}

var negInf = math.Inf(-1)
var posInf = math.Inf(1)

// less reports whether (s1, n1) sorts strictly before (s2, n2) under the
// (score, name) lexicographic ordering spec.md requires.
func less(s1 float64, n1 string, s2 float64, n2 string) bool {
	if s1 != s2 {
		return s1 < s2
	}
	return n1 < n2
}

func (l *List) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && l.rnd.Float64() < 0.5 {
		lvl++
	}
	return lvl
}

// Insert adds a new node for (score, name). Does not check for an
// existing node with the same name; callers that need upsert-by-name
// semantics (internal/zset) must Erase the old (score, name) pair first.
func (l *List) Insert(score float64, name string) {
	var update [maxLevel]*node
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.forward[i] != l.tail && less(x.forward[i].score, x.forward[i].name, score, name) {
			x = x.forward[i]
		}
		update[i] = x
	}

	newLevel := l.randomLevel()
	if newLevel > l.level {
		for i := l.level; i < newLevel; i++ {
			update[i] = l.head
		}
		l.level = newLevel
	}

	n := &node{
		score:    score,
		name:     name,
		forward:  make([]*node, newLevel),
		backward: make([]*node, newLevel),
	}
	for i := 0; i < newLevel; i++ {
		n.forward[i] = update[i].forward[i]
		n.backward[i] = update[i]
		update[i].forward[i].backward[i] = n
		update[i].forward[i] = n
	}
}

// Erase removes the unique node matching (score, name) exactly. Reports
// whether a matching node was found.
func (l *List) Erase(score float64, name string) bool {
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.forward[i] != l.tail && less(x.forward[i].score, x.forward[i].name, score, name) {
			x = x.forward[i]
		}
	}
	x = x.forward[0]
	if x == l.tail || x.score != score || x.name != name {
		return false
	}

	for i := 0; i < len(x.forward); i++ {
		x.backward[i].forward[i] = x.forward[i]
		x.forward[i].backward[i] = x.backward[i]
	}

	for l.level > 1 && l.head.forward[l.level-1] == l.tail {
		l.level--
	}
	return true
}

// Len reports the number of non-sentinel nodes, by walking the bottom
// level. O(n); used only by tests and stats, never on the hot path.
func (l *List) Len() int {
	n := 0
	for x := l.head.forward[0]; x != l.tail; x = x.forward[0] {
		n++
	}
	return n
}

// Iterator walks the bottom level starting at the first node whose score
// is >= the lower bound it was constructed with. It is one-shot: once
// exhausted it cannot be restarted (spec.md section 4.D).
type Iterator struct {
	tail *node
	cur  *node
}

// Next advances the iterator, returning the next (score, name) pair and
// true, or (0, "", false) once exhausted.
func (it *Iterator) Next() (score float64, name string, ok bool) {
	if it.cur == it.tail {
		return 0, "", false
	}
	score, name = it.cur.score, it.cur.name
	it.cur = it.cur.forward[0]
	return score, name, true
}

// SearchRange returns an iterator starting at the first node with
// score >= the given lower bound.
func (l *List) SearchRange(score float64) *Iterator {
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.forward[i] != l.tail && x.forward[i].score < score {
			x = x.forward[i]
		}
	}
	return &Iterator{tail: l.tail, cur: x.forward[0]}
}
