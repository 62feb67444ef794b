// Package zset composes internal/hashmap and internal/skiplist into the
// sorted-set collection of spec.md section 4.E: a member name is
// authoritative in the hash map, and the skip list is kept in lockstep so
// it carries exactly one node per member.
package zset

import (
	"encoding/binary"
	"math"

	"github.com/stormkv/stormkv/internal/hashmap"
	"github.com/stormkv/stormkv/internal/skiplist"
)

// UpsertResult reports whether Insert added a brand-new member or updated
// an existing one's score.
type UpsertResult int

const (
	Added UpsertResult = iota
	Updated
)

// Set is one sorted set: member -> score lives in the same
// incrementally-rehashing hash map the key/value store uses (spec.md
// section 4.E: "composition of B and D"), scores packed as 8
// little-endian bytes since hashmap.Map's values are byte slices.
type Set struct {
	scores *hashmap.Map
	order  *skiplist.List
}

// New creates an empty sorted set.
func New() *Set {
	return &Set{scores: hashmap.New(), order: skiplist.New()}
}

func encodeScore(score float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(score))
	return buf
}

func decodeScore(raw []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(raw))
}

// Insert sets member's score, reporting whether it was newly added.
func (s *Set) Insert(member string, score float64) UpsertResult {
	key := []byte(member)
	if raw, ok := s.scores.Get(key); ok {
		old := decodeScore(raw)
		if old != score {
			s.order.Erase(old, member)
			s.order.Insert(score, member)
		}
		s.scores.Set(key, encodeScore(score))
		return Updated
	}
	s.scores.Set(key, encodeScore(score))
	s.order.Insert(score, member)
	return Added
}

// Erase removes member. Reports whether it was present.
func (s *Set) Erase(member string) bool {
	key := []byte(member)
	raw, ok := s.scores.Get(key)
	if !ok {
		return false
	}
	s.scores.Delete(key)
	s.order.Erase(decodeScore(raw), member)
	return true
}

// Score returns member's current score.
func (s *Set) Score(member string) (float64, bool) {
	raw, ok := s.scores.Get([]byte(member))
	if !ok {
		return 0, false
	}
	return decodeScore(raw), true
}

// Len returns the number of members.
func (s *Set) Len() int { return s.scores.Len() }

// Range returns up to offset member names starting at the first member
// whose score is >= the given lower bound, in score order.
func (s *Set) Range(score float64, offset int) []string {
	if offset <= 0 {
		return nil
	}
	it := s.order.SearchRange(score)
	out := make([]string, 0, offset)
	for len(out) < offset {
		_, name, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, name)
	}
	return out
}
