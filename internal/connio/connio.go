// Package connio implements the per-connection state of spec.md section
// 4.H: an incoming and an outgoing ring buffer plus a close flag.
// Grounded on the source repository's conn_manager.hpp/.cpp Conn, which
// owns the same pair of RingBuffer<uint8_t> fields. Of that Conn's
// want_read/want_write/want_close flags only WantClose exists here;
// Connection keeps no Reading/Writing state. The transport-specific half
// (accepting sockets, scheduling reads/writes) lives in internal/server,
// which drives a Connection through gnet.Conn's callbacks; Connection
// itself knows nothing about gnet.
package connio

import (
	"errors"

	"github.com/stormkv/stormkv/internal/dispatch"
	"github.com/stormkv/stormkv/internal/proto"
	"github.com/stormkv/stormkv/internal/ringbuf"
	"github.com/stormkv/stormkv/internal/wire"
)

// ErrOverflow is returned by Feed when more bytes arrived than the fixed
// incoming buffer can hold. The original C++ Conn has no flow-control
// story beyond its fixed RingBuffer capacity either; both close the
// connection rather than grow the buffer.
var ErrOverflow = errors.New("connio: incoming buffer overflow")

// Connection is one client's buffered read/write state.
type Connection struct {
	ID        string
	Incoming  *ringbuf.Buffer
	Outgoing  *ringbuf.Buffer
	WantClose bool
}

// New creates a Connection with the spec-fixed buffer capacities.
func New(id string) *Connection {
	return &Connection{
		ID:       id,
		Incoming: ringbuf.New(wire.BufferCapacity),
		Outgoing: ringbuf.New(wire.BufferCapacity),
	}
}

// Feed appends freshly-read transport bytes to Incoming.
func (c *Connection) Feed(data []byte) error {
	if err := c.Incoming.Insert(data); err != nil {
		return ErrOverflow
	}
	return nil
}

// Drain dispatches every complete, already-buffered request frame
// through d, appending each reply to Outgoing. It is the Go analogue of
// Conn::handle_read's parse-dispatch-respond loop, and stops as soon as
// Incoming holds less than one full frame (spec.md section 4.H).
//
// A malformed frame or one exceeding the max message length is
// connection-fatal: WantClose is set and Drain returns the triggering
// error so the caller can tear the connection down after flushing
// whatever replies were already queued.
func (c *Connection) Drain(d *dispatch.Dispatcher) error {
	for {
		payload, total, ok, err := proto.PeekFrame(c.Incoming)
		if err != nil {
			c.WantClose = true
			return err
		}
		if !ok {
			return nil
		}

		args, err := proto.ParseRequest(payload)
		if err != nil {
			c.WantClose = true
			return err
		}

		if err := d.Execute(args, c.Outgoing); err != nil {
			c.WantClose = true
			return err
		}

		if err := c.Incoming.EraseFront(total); err != nil {
			return err
		}
	}
}

// TakeOutgoing removes and returns every byte currently queued in
// Outgoing, for handing off to the transport's write call.
func (c *Connection) TakeOutgoing() []byte {
	n := c.Outgoing.Size()
	if n == 0 {
		return nil
	}
	data, _ := c.Outgoing.PeekFront(n)
	_ = c.Outgoing.EraseFront(n)
	return data
}

// HasPendingWrite reports whether Outgoing still holds unflushed bytes.
func (c *Connection) HasPendingWrite() bool {
	return c.Outgoing.Size() > 0
}
