// Package ttlheap implements the binary min-heap of (expire_at, key) used
// to find and reap expired keys without scanning the whole key space.
// Ported from the source repository's custom_heap.cpp/.hpp: every swap
// updates the moved slot's index back-reference, and a side key->index
// map makes update/remove by key possible without a linear search.
package ttlheap

// slot is one heap element. index is kept equal to this slot's current
// position in heap.slots at all times (spec.md's HeapSlot invariant).
type slot struct {
	key      string
	expireAt int64
	index    int
}

// Heap is a min-heap ordered by expireAt, with O(1) lookup of a key's
// current slot via keyIndex.
type Heap struct {
	slots    []*slot
	keyIndex map[string]int
}

// New creates an empty TTL heap.
func New() *Heap {
	return &Heap{keyIndex: make(map[string]int)}
}

func (h *Heap) Len() int { return len(h.slots) }

func (h *Heap) swap(i, j int) {
	h.slots[i], h.slots[j] = h.slots[j], h.slots[i]
	h.slots[i].index = i
	h.slots[j].index = j
	h.keyIndex[h.slots[i].key] = i
	h.keyIndex[h.slots[j].key] = j
}

func (h *Heap) siftDown(i int) {
	n := len(h.slots)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h.slots[left].expireAt < h.slots[smallest].expireAt {
			smallest = left
		}
		if right < n && h.slots[right].expireAt < h.slots[smallest].expireAt {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.slots[parent].expireAt <= h.slots[i].expireAt {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

// Insert sets key's absolute expiration time. A negative expireAt means
// "no TTL" and is equivalent to Remove (spec.md section 4.C).
func (h *Heap) Insert(key string, expireAt int64) {
	if expireAt < 0 {
		h.Remove(key)
		return
	}
	if _, ok := h.keyIndex[key]; ok {
		h.Update(key, expireAt)
		return
	}
	s := &slot{key: key, expireAt: expireAt, index: len(h.slots)}
	h.slots = append(h.slots, s)
	h.keyIndex[key] = s.index
	h.siftUp(s.index)
}

// Update changes key's absolute expiration time, sifting up if it shrank
// or down if it grew. A negative newExpireAt removes the key.
func (h *Heap) Update(key string, newExpireAt int64) {
	if newExpireAt < 0 {
		h.Remove(key)
		return
	}
	i, ok := h.keyIndex[key]
	if !ok {
		h.Insert(key, newExpireAt)
		return
	}
	old := h.slots[i].expireAt
	h.slots[i].expireAt = newExpireAt
	if newExpireAt < old {
		h.siftUp(i)
	} else {
		h.siftDown(i)
	}
}

// Remove deletes key from the heap if present. Reports whether it was
// present.
func (h *Heap) Remove(key string) bool {
	i, ok := h.keyIndex[key]
	if !ok {
		return false
	}
	last := len(h.slots) - 1
	h.swap(i, last)
	removed := h.slots[last]
	h.slots = h.slots[:last]
	delete(h.keyIndex, removed.key)

	if i < len(h.slots) {
		h.siftDown(i)
		h.siftUp(i)
	}
	return true
}

// TTL returns the key's absolute expiration time and whether it has one.
func (h *Heap) TTL(key string) (int64, bool) {
	i, ok := h.keyIndex[key]
	if !ok {
		return 0, false
	}
	return h.slots[i].expireAt, true
}

// PeekMinExpireAt returns the soonest expiration time in the heap.
func (h *Heap) PeekMinExpireAt() (int64, bool) {
	if len(h.slots) == 0 {
		return 0, false
	}
	return h.slots[0].expireAt, true
}

// PopMin removes and returns the key with the soonest expiration time.
func (h *Heap) PopMin() (string, int64, bool) {
	if len(h.slots) == 0 {
		return "", 0, false
	}
	min := h.slots[0]
	h.Remove(min.key)
	return min.key, min.expireAt, true
}
