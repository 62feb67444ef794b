package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stormkv/stormkv/internal/ringbuf"
	"github.com/stormkv/stormkv/internal/wire"
)

func TestEncodeParseRequestRoundTrip(t *testing.T) {
	frame, err := EncodeRequest([]string{"set", "a", "1"})
	require.NoError(t, err)

	buf := ringbuf.New(512)
	require.NoError(t, buf.Insert(frame))

	payload, total, ok, err := PeekFrame(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(frame), total)

	args, err := ParseRequest(payload)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("set"), []byte("a"), []byte("1")}, args)
}

func TestPeekFrameWaitsForMoreBytes(t *testing.T) {
	frame, _ := EncodeRequest([]string{"get", "a"})
	buf := ringbuf.New(512)
	require.NoError(t, buf.Insert(frame[:len(frame)-1]))

	_, _, ok, err := PeekFrame(buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPeekFrameRejectsOversizedMessage(t *testing.T) {
	buf := ringbuf.New(1024)
	var header [4]byte
	header[0] = 0xFF
	header[1] = 0xFF
	require.NoError(t, buf.Insert(header[:]))

	_, _, _, err := PeekFrame(buf)
	require.ErrorIs(t, err, ErrFrameTooLong)
}

func TestParseRequestRejectsTrailingBytes(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 1, 2, 3} // nstr=0, but 3 trailing bytes
	_, err := ParseRequest(payload)
	require.ErrorIs(t, err, ErrCantRead)
}

func TestParseRequestRejectsTruncatedString(t *testing.T) {
	// nstr=1, slen=10, but no string bytes follow
	payload := []byte{1, 0, 0, 0, 10, 0, 0, 0}
	_, err := ParseRequest(payload)
	require.ErrorIs(t, err, ErrCantRead)
}

func TestDecodeValueAllTags(t *testing.T) {
	buf := ringbuf.New(256)
	require.NoError(t, buf.AppendNil())
	require.NoError(t, buf.AppendInt(-7))
	require.NoError(t, buf.AppendDbl(3.5))
	require.NoError(t, buf.AppendStr([]byte("hi")))
	require.NoError(t, buf.AppendErr(wire.NoCmd, "command doesn't exist"))

	data, err := buf.PeekFront(buf.Size())
	require.NoError(t, err)

	v, rest, err := DecodeValue(data)
	require.NoError(t, err)
	require.Equal(t, wire.TagNil, v.Tag)

	v, rest, err = DecodeValue(rest)
	require.NoError(t, err)
	require.Equal(t, int64(-7), v.Int)

	v, rest, err = DecodeValue(rest)
	require.NoError(t, err)
	require.InDelta(t, 3.5, v.Dbl, 1e-9)

	v, rest, err = DecodeValue(rest)
	require.NoError(t, err)
	require.Equal(t, "hi", string(v.Str))

	v, rest, err = DecodeValue(rest)
	require.NoError(t, err)
	require.Equal(t, wire.NoCmd, v.ErrCode)
	require.Equal(t, "command doesn't exist", v.ErrMsg)
	require.Empty(t, rest)
}

func TestDecodeValueArray(t *testing.T) {
	buf := ringbuf.New(256)
	require.NoError(t, buf.AppendArrHeader(2))
	require.NoError(t, buf.AppendStr([]byte("alice")))
	require.NoError(t, buf.AppendStr([]byte("bob")))

	data, _ := buf.PeekFront(buf.Size())
	v, rest, err := DecodeValue(data)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Len(t, v.Arr, 2)
	require.Equal(t, "alice", string(v.Arr[0].Str))
	require.Equal(t, "bob", string(v.Arr[1].Str))
}

func TestEncodeRequestRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, wire.MaxMsgLen)
	_, err := EncodeRequest([]string{string(big)})
	require.Error(t, err)
}
