// Package engine wires the incremental hash map, the TTL heap and the
// sorted set together into the single in-memory Store a connection's
// commands operate on (spec.md section 4.F's dispatcher acts on exactly
// this type). Grounded on the teacher's internal/engine/store.go, which
// plays the same "central store struct" role, generalized from a
// sharded LRU cache to the single-threaded, TTL-heap-backed model
// spec.md requires.
package engine

import (
	"github.com/stormkv/stormkv/internal/hashmap"
	"github.com/stormkv/stormkv/internal/ttlheap"
	"github.com/stormkv/stormkv/internal/wire"
	"github.com/stormkv/stormkv/internal/zset"
)

// Store is the server's entire keyspace: strings with optional TTLs plus
// one sorted set. It is owned exclusively by the event-loop goroutine and
// must never be touched concurrently (spec.md section 5).
type Store struct {
	data *hashmap.Map
	ttl  *ttlheap.Heap
	zset *zset.Set
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data: hashmap.New(),
		ttl:  ttlheap.New(),
		zset: zset.New(),
	}
}

// Get returns key's value, or !ok if it is absent. Callers must run
// ExpireDue first so a due-but-not-yet-reaped key is never returned.
func (s *Store) Get(key string) ([]byte, bool) {
	return s.data.Get([]byte(key))
}

// Set inserts or overwrites key's value, leaving any TTL heap slot it
// already holds untouched: original_source/hashmap.hpp's insert(key,
// value) overwrites the value on the same HashNode without touching
// ctx.ttl_manager, and commands.cpp's SetCommand::execute never calls
// into the TTL manager either.
func (s *Store) Set(key string, value []byte) {
	s.data.Set([]byte(key), value)
}

// Del removes key, also dropping any TTL heap slot it held. Reports
// whether the key was present.
func (s *Store) Del(key string) bool {
	removed := s.data.Delete([]byte(key))
	if removed {
		s.ttl.Remove(key)
	}
	return removed
}

// Expire attaches a TTL to key, expiring nowMS+ttlSeconds*1000 from now.
// A negative ttlSeconds removes any existing TTL (spec.md section 4.C).
// Returns wire.TTLExpired if key does not exist, else 1 (OK).
func (s *Store) Expire(key string, ttlSeconds int64, nowMS int64) int64 {
	if _, ok := s.data.Get([]byte(key)); !ok {
		return wire.TTLExpired
	}
	if ttlSeconds < 0 {
		s.ttl.Remove(key)
		return 1
	}
	s.ttl.Insert(key, nowMS+ttlSeconds*1000)
	return 1
}

// Persist removes key's TTL, leaving it permanent. Returns
// wire.TTLExpired if key does not exist, else 1 (OK).
func (s *Store) Persist(key string) int64 {
	if _, ok := s.data.Get([]byte(key)); !ok {
		return wire.TTLExpired
	}
	s.ttl.Remove(key)
	return 1
}

// TTLSeconds returns key's remaining TTL in whole seconds, wire.TTLNoTTL
// if it has none, or wire.TTLExpired if key does not exist.
func (s *Store) TTLSeconds(key string, nowMS int64) int64 {
	if _, ok := s.data.Get([]byte(key)); !ok {
		return wire.TTLExpired
	}
	expireAt, ok := s.ttl.TTL(key)
	if !ok {
		return wire.TTLNoTTL
	}
	remainMS := expireAt - nowMS
	if remainMS < 0 {
		remainMS = 0
	}
	return remainMS / 1000
}

// ExpireDue pops every key whose TTL has elapsed as of nowMS and removes
// it from the map, returning how many were reaped. Called before every
// key-addressed command (spec.md section 4.F) and once per event-loop
// tick (spec.md section 4.J step 6).
func (s *Store) ExpireDue(nowMS int64) int {
	count := 0
	for {
		at, ok := s.ttl.PeekMinExpireAt()
		if !ok || at > nowMS {
			break
		}
		key, _, _ := s.ttl.PopMin()
		s.data.Delete([]byte(key))
		count++
	}
	return count
}

// NextExpireAt returns the soonest TTL deadline in the heap, used by the
// event loop to compute its poll timeout (spec.md section 4.I).
func (s *Store) NextExpireAt() (int64, bool) {
	return s.ttl.PeekMinExpireAt()
}

// ZAdd upserts member's score in the (single, global) sorted set.
// Returns 1 if member was newly added, 0 if its score was updated.
func (s *Store) ZAdd(member string, score float64) int64 {
	if s.zset.Insert(member, score) == zset.Added {
		return 1
	}
	return 0
}

// ZRem removes member from the sorted set. Returns 1 if it was present,
// else 0.
func (s *Store) ZRem(member string) int64 {
	if s.zset.Erase(member) {
		return 1
	}
	return 0
}

// ZRange returns up to offset member names starting at the first member
// whose score is >= the lower bound, in score order.
func (s *Store) ZRange(lowerBound float64, offset int64) []string {
	return s.zset.Range(lowerBound, int(offset))
}

// ZLen returns the number of members currently in the sorted set.
func (s *Store) ZLen() int {
	return s.zset.Len()
}

// RehashSteps returns the cumulative number of hash map slot migrations
// performed across every incremental resize since the store was created.
func (s *Store) RehashSteps() int {
	return s.data.Migrations()
}
