// Package ringbuf implements the bounded circular byte buffer used by every
// connection to stage incoming and outgoing bytes. Ported from the source
// repository's buffer.hpp RingBuffer<uint8_t>, with the typed append
// helpers it grew for encoding wire-protocol values directly into the
// outgoing buffer.
package ringbuf

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/stormkv/stormkv/internal/wire"
)

// ErrBufferFull is returned by any append that would exceed capacity.
// The caller (the connection layer) closes the connection on this error,
// except when it occurs while encoding a response body, where it is
// downgraded to a command-level TOOLONG error per spec.md section 7.
var ErrBufferFull = errors.New("ringbuf: buffer full")

// ErrUnderflow is returned by PopFront/EraseFront/TruncateTo/PeekFront/
// PatchAt when the requested range exceeds the buffered content.
var ErrUnderflow = errors.New("ringbuf: underflow")

// Buffer is a fixed-capacity circular byte buffer.
type Buffer struct {
	buf      []byte
	head     int
	tail     int
	capacity int
	empty    bool
}

// New allocates a ring buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer{
		buf:      make([]byte, capacity),
		capacity: capacity,
		empty:    true,
	}
}

// Size returns the number of buffered bytes.
func (b *Buffer) Size() int {
	if b.empty {
		return 0
	}
	if b.head < b.tail {
		return b.tail - b.head
	}
	return b.capacity - (b.head - b.tail)
}

// Capacity returns the fixed capacity of the buffer.
func (b *Buffer) Capacity() int { return b.capacity }

func (b *Buffer) isFull() bool { return b.head == b.tail && !b.empty }

// PushBack appends a single byte.
func (b *Buffer) PushBack(v byte) error {
	if b.isFull() {
		return ErrBufferFull
	}
	b.buf[b.tail] = v
	b.tail = (b.tail + 1) % b.capacity
	b.empty = false
	return nil
}

// PopFront removes and returns the oldest byte.
func (b *Buffer) PopFront() (byte, error) {
	if b.Size() == 0 {
		return 0, ErrUnderflow
	}
	v := b.buf[b.head]
	b.head = (b.head + 1) % b.capacity
	if b.head == b.tail {
		b.empty = true
	}
	return v, nil
}

// Insert appends a byte slice, failing atomically (no partial write) if it
// would not fit.
func (b *Buffer) Insert(data []byte) error {
	if len(data) > b.capacity-b.Size() {
		return ErrBufferFull
	}
	for _, v := range data {
		// capacity already checked above; PushBack cannot fail here.
		_ = b.PushBack(v)
	}
	return nil
}

// InsertRepeat appends the given value n times.
func (b *Buffer) InsertRepeat(v byte, n int) error {
	if n > b.capacity-b.Size() {
		return ErrBufferFull
	}
	for i := 0; i < n; i++ {
		_ = b.PushBack(v)
	}
	return nil
}

// EraseFront discards the n oldest bytes.
func (b *Buffer) EraseFront(n int) error {
	if n > b.Size() {
		return ErrUnderflow
	}
	for i := 0; i < n; i++ {
		_, _ = b.PopFront()
	}
	return nil
}

// TruncateTo discards bytes from the tail until Size() == n. Used to roll
// back a partially-encoded response when a later append in the same value
// tree overflows the buffer (spec.md section 7).
func (b *Buffer) TruncateTo(n int) error {
	size := b.Size()
	if n > size || n < 0 {
		return ErrUnderflow
	}
	drop := size - n
	for i := 0; i < drop; i++ {
		if b.tail == 0 {
			b.tail = b.capacity - 1
		} else {
			b.tail--
		}
		if b.tail == b.head {
			b.empty = true
		}
	}
	return nil
}

// PeekFront copies the n oldest bytes without removing them.
func (b *Buffer) PeekFront(n int) ([]byte, error) {
	if n > b.Size() {
		return nil, ErrUnderflow
	}
	out := make([]byte, n)
	idx := b.head
	for i := 0; i < n; i++ {
		out[i] = b.buf[idx]
		idx = (idx + 1) % b.capacity
	}
	return out, nil
}

// PatchAt overwrites an already-written range starting at the given
// logical offset from the current head. It is used to go back and fill in
// a response's length prefix once the body has been fully encoded.
func (b *Buffer) PatchAt(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.Size() {
		return ErrUnderflow
	}
	idx := (b.head + offset) % b.capacity
	for _, v := range data {
		b.buf[idx] = v
		idx = (idx + 1) % b.capacity
	}
	return nil
}

// ---- typed appenders (spec.md section 4.A / section 6 wire format) ----

func (b *Buffer) AppendNil() error {
	return b.PushBack(byte(wire.TagNil))
}

// AppendInt writes a TAG_INT value. The wire contract fixes the body width
// at 64 bits (spec.md section 9's open question, resolved to i64).
func (b *Buffer) AppendInt(v int64) error {
	if err := reserveCheck(b, 1+8); err != nil {
		return err
	}
	_ = b.PushBack(byte(wire.TagInt))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return b.Insert(tmp[:])
}

func (b *Buffer) AppendDbl(v float64) error {
	if err := reserveCheck(b, 1+8); err != nil {
		return err
	}
	_ = b.PushBack(byte(wire.TagDbl))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return b.Insert(tmp[:])
}

func (b *Buffer) AppendStr(s []byte) error {
	if err := reserveCheck(b, 1+4+len(s)); err != nil {
		return err
	}
	_ = b.PushBack(byte(wire.TagStr))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(s)))
	if err := b.Insert(tmp[:]); err != nil {
		return err
	}
	return b.Insert(s)
}

// AppendArrHeader writes the TAG_ARR tag and element count; the caller
// appends the n element values itself.
func (b *Buffer) AppendArrHeader(n uint32) error {
	if err := reserveCheck(b, 1+4); err != nil {
		return err
	}
	_ = b.PushBack(byte(wire.TagArr))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	return b.Insert(tmp[:])
}

func (b *Buffer) AppendErr(code wire.ErrorCode, msg string) error {
	if err := reserveCheck(b, 1+4+4+len(msg)); err != nil {
		return err
	}
	_ = b.PushBack(byte(wire.TagErr))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(int32(code)))
	if err := b.Insert(tmp[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(msg)))
	if err := b.Insert(tmp[:]); err != nil {
		return err
	}
	return b.Insert([]byte(msg))
}

func reserveCheck(b *Buffer, n int) error {
	if n > b.capacity-b.Size() {
		return ErrBufferFull
	}
	return nil
}
