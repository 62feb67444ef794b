package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stormkv/stormkv/internal/clock"
	"github.com/stormkv/stormkv/internal/engine"
	"github.com/stormkv/stormkv/internal/proto"
	"github.com/stormkv/stormkv/internal/ringbuf"
	"github.com/stormkv/stormkv/internal/wire"
)

func decodeOne(t *testing.T, out *ringbuf.Buffer) proto.Value {
	t.Helper()
	header, err := out.PeekFront(4)
	require.NoError(t, err)
	bodyLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16 | int(header[3])<<24
	full, err := out.PeekFront(4 + bodyLen)
	require.NoError(t, err)
	require.NoError(t, out.EraseFront(4+bodyLen))
	v, rest, err := proto.DecodeValue(full[4:])
	require.NoError(t, err)
	require.Empty(t, rest)
	return v
}

func args(tokens ...string) [][]byte {
	out := make([][]byte, len(tokens))
	for i, tk := range tokens {
		out[i] = []byte(tk)
	}
	return out
}

func TestSetThenGetRoundTrip(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("set", "a", "1"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagNil, v.Tag)

	require.NoError(t, d.Execute(args("get", "a"), out))
	v = decodeOne(t, out)
	require.Equal(t, wire.TagStr, v.Tag)
	require.Equal(t, "1", string(v.Str))
}

func TestGetMissingKeyIsNil(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("get", "missing"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagNil, v.Tag)
}

func TestUnknownCommandIsNoCmdError(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("frobnicate", "a"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagErr, v.Tag)
	require.Equal(t, wire.NoCmd, v.ErrCode)
}

func TestWrongArityIsInvalidError(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("get", "a", "b"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagErr, v.Tag)
	require.Equal(t, wire.Invalid, v.ErrCode)
}

func TestNonNumericTTLIsInvalidError(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("set", "a", "1"), out))
	decodeOne(t, out)

	require.NoError(t, d.Execute(args("expire", "a", "soon"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagErr, v.Tag)
	require.Equal(t, wire.Invalid, v.ErrCode)
}

func TestExpireThenGetAfterTicksReapsKey(t *testing.T) {
	clk := clock.NewFake(0)
	d := New(engine.New(), clk)
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("set", "a", "1"), out))
	decodeOne(t, out)
	require.NoError(t, d.Execute(args("expire", "a", "1"), out))
	decodeOne(t, out)

	clk.Advance(1500)
	require.NoError(t, d.Execute(args("get", "a"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagNil, v.Tag)
}

func TestZAddZRangeRoundTrip(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("zadd", "bob", "10"), out))
	v := decodeOne(t, out)
	require.EqualValues(t, 1, v.Int)

	require.NoError(t, d.Execute(args("zadd", "alice", "5"), out))
	decodeOne(t, out)

	require.NoError(t, d.Execute(args("zrange", "0", "10"), out))
	v = decodeOne(t, out)
	require.Equal(t, wire.TagArr, v.Tag)
	require.Len(t, v.Arr, 2)
	require.Equal(t, "alice", string(v.Arr[0].Str))
	require.Equal(t, "bob", string(v.Arr[1].Str))
}

func TestZAddNonNumericScoreIsInvalidError(t *testing.T) {
	d := New(engine.New(), clock.NewFake(0))
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("zadd", "bob", "nan-ish"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagErr, v.Tag)
	require.Equal(t, wire.Invalid, v.ErrCode)
}

func TestOversizedResponseDegradesToTooLong(t *testing.T) {
	store := engine.New()
	big := make([]byte, 64)
	for i := range big {
		big[i] = 'x'
	}
	store.Set("a", big)

	d := New(store, clock.NewFake(0))
	out := ringbuf.New(40) // fits a TOOLONG error but not the 64-byte STR reply

	require.NoError(t, d.Execute(args("get", "a"), out))
	v := decodeOne(t, out)
	require.Equal(t, wire.TagErr, v.Tag)
	require.Equal(t, wire.TooLong, v.ErrCode)
}

func TestSweepReapsDueKeysWithoutACommand(t *testing.T) {
	clk := clock.NewFake(0)
	d := New(engine.New(), clk)
	out := ringbuf.New(wire.BufferCapacity)

	require.NoError(t, d.Execute(args("set", "a", "1"), out))
	decodeOne(t, out)
	require.NoError(t, d.Execute(args("expire", "a", "1"), out))
	decodeOne(t, out)

	clk.Advance(2000)
	require.Equal(t, 1, d.Sweep())
}
