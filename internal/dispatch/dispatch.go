// Package dispatch implements the command dispatcher of spec.md section
// 4.F: it maps parsed command vectors to operations on internal/engine's
// Store and encodes the typed reply straight into a connection's
// outgoing ring buffer. Grounded on original_source/commands.hpp/.cpp's
// CommandExecutor, which plays the identical role.
package dispatch

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"

	"github.com/stormkv/stormkv/internal/clock"
	"github.com/stormkv/stormkv/internal/engine"
	"github.com/stormkv/stormkv/internal/metrics"
	"github.com/stormkv/stormkv/internal/ringbuf"
	"github.com/stormkv/stormkv/internal/wire"
)

// keyed marks commands whose execution must be preceded by a sweep of
// due TTLs (spec.md section 4.F: "Before executing any key-addressed
// command, the dispatcher calls process_expired").
type command struct {
	arity int // total tokens, including the command name
	keyed bool
	fn    func(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error
}

// Dispatcher executes parsed command vectors against one Store.
type Dispatcher struct {
	store   *engine.Store
	clk     clock.Clock
	table   map[string]command
	metrics *metrics.Metrics
}

// New creates a dispatcher bound to store, using clk to read the current
// time for TTL arithmetic and sweeps.
func New(store *engine.Store, clk clock.Clock) *Dispatcher {
	d := &Dispatcher{store: store, clk: clk}
	d.table = map[string]command{
		"get":     {arity: 2, keyed: true, fn: cmdGet},
		"set":     {arity: 3, keyed: true, fn: cmdSet},
		"del":     {arity: 2, keyed: true, fn: cmdDel},
		"expire":  {arity: 3, keyed: true, fn: cmdExpire},
		"persist": {arity: 2, keyed: true, fn: cmdPersist},
		"ttl":     {arity: 2, keyed: true, fn: cmdTTL},
		"zadd":    {arity: 3, keyed: false, fn: cmdZAdd},
		"zrem":    {arity: 2, keyed: false, fn: cmdZRem},
		"zrange":  {arity: 3, keyed: false, fn: cmdZRange},
	}
	return d
}

// SetMetrics attaches the collectors Execute reports command counts to.
// Optional: a Dispatcher with no metrics attached dispatches exactly the
// same, it just has nothing to increment.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Execute runs one parsed command vector, encoding its reply into out.
// It returns an error only for connection-fatal faults (the outgoing
// ring buffer could not even hold a minimal error reply); command-level
// faults are encoded as TAG_ERR and reported via a nil return.
func (d *Dispatcher) Execute(args [][]byte, out *ringbuf.Buffer) error {
	if len(args) == 0 {
		return writeErr(out, wire.NoCmd, "command doesn't exist")
	}

	name := strings.ToLower(string(args[0]))
	cmd, ok := d.table[name]
	if !ok {
		return writeErr(out, wire.NoCmd, "command doesn't exist")
	}
	if len(args) != cmd.arity {
		return writeErr(out, wire.Invalid, "wrong number of arguments")
	}

	if d.metrics != nil {
		d.metrics.CommandProcessed(name)
	}

	if cmd.keyed {
		d.store.ExpireDue(d.clk.NowMS())
	}
	return cmd.fn(d, args[1:], out)
}

// Sweep reaps every due key, for use by the event loop's per-tick
// housekeeping (spec.md section 4.J step 6).
func (d *Dispatcher) Sweep() int {
	return d.store.ExpireDue(d.clk.NowMS())
}

// NextExpireAt exposes the store's TTL heap horizon for computing the
// event loop's poll timeout (spec.md section 4.I).
func (d *Dispatcher) NextExpireAt() (int64, bool) {
	return d.store.NextExpireAt()
}

// RehashSteps exposes the store's cumulative hash map migration count,
// for the event loop's per-tick metrics reporting.
func (d *Dispatcher) RehashSteps() int {
	return d.store.RehashSteps()
}

// ZsetLen exposes the sorted set's current member count, for the event
// loop's per-tick metrics reporting.
func (d *Dispatcher) ZsetLen() int {
	return d.store.ZLen()
}

func cmdGet(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	v, ok := d.store.Get(string(args[0]))
	if !ok {
		return writeNil(out)
	}
	return writeStr(out, v)
}

func cmdSet(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	d.store.Set(string(args[0]), append([]byte(nil), args[1]...))
	return writeNil(out)
}

func cmdDel(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	removed := d.store.Del(string(args[0]))
	return writeInt(out, boolToInt(removed))
}

func cmdExpire(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	ttl, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return writeErr(out, wire.Invalid, "ttl must be an integer")
	}
	return writeInt(out, d.store.Expire(string(args[0]), ttl, d.clk.NowMS()))
}

func cmdPersist(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	return writeInt(out, d.store.Persist(string(args[0])))
}

func cmdTTL(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	return writeInt(out, d.store.TTLSeconds(string(args[0]), d.clk.NowMS()))
}

func cmdZAdd(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	score, err := strconv.ParseFloat(string(args[1]), 64)
	if err != nil {
		return writeErr(out, wire.Invalid, "score must be a number")
	}
	return writeInt(out, d.store.ZAdd(string(args[0]), score))
}

func cmdZRem(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	return writeInt(out, d.store.ZRem(string(args[0])))
}

func cmdZRange(d *Dispatcher, args [][]byte, out *ringbuf.Buffer) error {
	score, err := strconv.ParseFloat(string(args[0]), 64)
	if err != nil {
		return writeErr(out, wire.Invalid, "score must be a number")
	}
	offset, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return writeErr(out, wire.Invalid, "offset must be an integer")
	}
	members := d.store.ZRange(score, offset)
	return writeArrStr(out, members)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ---- response encoding, with the reserve/patch-at framing and the
// truncate-and-retry-as-TOOLONG rollback spec.md section 7 requires ----

func encodeResponse(out *ringbuf.Buffer, writeBody func(*ringbuf.Buffer) error) error {
	offset := out.Size()
	if err := out.InsertRepeat(0, 4); err != nil {
		return err
	}
	bodyStart := out.Size()

	if err := writeBody(out); err != nil {
		if !errors.Is(err, ringbuf.ErrBufferFull) {
			return err
		}
		// Roll the partial body back and reply TOOLONG in the same reserved
		// frame; if even that does not fit, drop the whole frame.
		if rollbackErr := out.TruncateTo(bodyStart); rollbackErr != nil {
			return rollbackErr
		}
		if errReplyErr := out.AppendErr(wire.TooLong, "response too long"); errReplyErr != nil {
			_ = out.TruncateTo(offset)
			return errReplyErr
		}
	}

	bodyLen := out.Size() - bodyStart
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(bodyLen))
	return out.PatchAt(offset, lenBytes[:])
}

func writeNil(out *ringbuf.Buffer) error {
	return encodeResponse(out, func(b *ringbuf.Buffer) error { return b.AppendNil() })
}

func writeInt(out *ringbuf.Buffer, v int64) error {
	return encodeResponse(out, func(b *ringbuf.Buffer) error { return b.AppendInt(v) })
}

func writeStr(out *ringbuf.Buffer, s []byte) error {
	return encodeResponse(out, func(b *ringbuf.Buffer) error { return b.AppendStr(s) })
}

func writeErr(out *ringbuf.Buffer, code wire.ErrorCode, msg string) error {
	return encodeResponse(out, func(b *ringbuf.Buffer) error { return b.AppendErr(code, msg) })
}

func writeArrStr(out *ringbuf.Buffer, items []string) error {
	return encodeResponse(out, func(b *ringbuf.Buffer) error {
		if err := b.AppendArrHeader(uint32(len(items))); err != nil {
			return err
		}
		for _, it := range items {
			if err := b.AppendStr([]byte(it)); err != nil {
				return err
			}
		}
		return nil
	})
}
