// Package proto implements the wire codec of spec.md sections 4.G and 6:
// length-prefixed request framing, the u32-nstr request payload, and the
// recursively-tagged response value tree. Grounded on the source
// repository's protocol.hpp/.cpp (RequestParser) and
// io_shared_library.hpp (the Tag/ErrorCode enums).
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/stormkv/stormkv/internal/ringbuf"
	"github.com/stormkv/stormkv/internal/wire"
)

// ErrCantRead is returned when a request payload is truncated, has
// trailing bytes, or otherwise fails to parse — spec.md section 4.G.
var ErrCantRead = errors.New("proto: malformed request payload")

// ErrFrameTooLong is returned by PeekFrame when a frame's declared
// length exceeds wire.MaxMsgLen. The connection must be closed; this is
// a protocol-level, connection-fatal fault (spec.md section 7).
var ErrFrameTooLong = errors.New("proto: frame exceeds max message length")

// PeekFrame looks for one complete frame at the front of buf without
// consuming it. ok is false if not enough bytes have arrived yet. On
// success, totalLen is the number of bytes (header + payload) the caller
// must EraseFront once it has finished acting on payload.
func PeekFrame(buf *ringbuf.Buffer) (payload []byte, totalLen int, ok bool, err error) {
	if buf.Size() < wire.HeaderSize {
		return nil, 0, false, nil
	}
	header, _ := buf.PeekFront(wire.HeaderSize)
	msgLen := binary.LittleEndian.Uint32(header)
	if msgLen > wire.MaxMsgLen {
		return nil, 0, false, ErrFrameTooLong
	}
	total := wire.HeaderSize + int(msgLen)
	if buf.Size() < total {
		return nil, 0, false, nil
	}
	full, _ := buf.PeekFront(total)
	return full[wire.HeaderSize:], total, true, nil
}

// ParseRequest decodes a request payload into its command token list,
// per spec.md section 6: u32 nstr then nstr times (u32 slen + slen
// bytes). Truncation or trailing bytes are both ErrCantRead.
func ParseRequest(payload []byte) ([][]byte, error) {
	if len(payload) < 4 {
		return nil, ErrCantRead
	}
	nstr := binary.LittleEndian.Uint32(payload[:4])
	pos := 4
	args := make([][]byte, 0, nstr)
	for i := uint32(0); i < nstr; i++ {
		if pos+4 > len(payload) {
			return nil, ErrCantRead
		}
		slen := binary.LittleEndian.Uint32(payload[pos : pos+4])
		pos += 4
		if pos+int(slen) > len(payload) {
			return nil, ErrCantRead
		}
		args = append(args, payload[pos:pos+int(slen)])
		pos += int(slen)
	}
	if pos != len(payload) {
		return nil, ErrCantRead
	}
	return args, nil
}

// EncodeRequest builds one complete request frame (header + payload) for
// the given command tokens, for use by the client CLI.
func EncodeRequest(args []string) ([]byte, error) {
	payloadLen := 4
	for _, a := range args {
		payloadLen += 4 + len(a)
	}
	if payloadLen > wire.MaxMsgLen {
		return nil, fmt.Errorf("proto: request payload of %d bytes exceeds max message length %d", payloadLen, wire.MaxMsgLen)
	}

	frame := make([]byte, wire.HeaderSize+payloadLen)
	binary.LittleEndian.PutUint32(frame[0:4], uint32(payloadLen))

	pos := wire.HeaderSize
	binary.LittleEndian.PutUint32(frame[pos:pos+4], uint32(len(args)))
	pos += 4
	for _, a := range args {
		binary.LittleEndian.PutUint32(frame[pos:pos+4], uint32(len(a)))
		pos += 4
		copy(frame[pos:], a)
		pos += len(a)
	}
	return frame, nil
}

// ReadFrame reads one complete frame's payload from r, the client side's
// mirror of PeekFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [wire.HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	msgLen := binary.LittleEndian.Uint32(header[:])
	if msgLen > wire.MaxMsgLen {
		return nil, ErrFrameTooLong
	}
	payload := make([]byte, msgLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Value is a decoded response value tree, used by the client CLI to
// render a reply (spec.md section 4.K).
type Value struct {
	Tag     wire.Tag
	Str     []byte
	Int     int64
	Dbl     float64
	ErrCode wire.ErrorCode
	ErrMsg  string
	Arr     []Value
}

// DecodeValue decodes one typed value from the front of data, returning
// the remaining unconsumed bytes.
func DecodeValue(data []byte) (Value, []byte, error) {
	if len(data) < 1 {
		return Value{}, nil, io.ErrUnexpectedEOF
	}
	tag := wire.Tag(data[0])
	data = data[1:]

	switch tag {
	case wire.TagNil:
		return Value{Tag: tag}, data, nil

	case wire.TagInt:
		if len(data) < 8 {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		v := int64(binary.LittleEndian.Uint64(data[:8]))
		return Value{Tag: tag, Int: v}, data[8:], nil

	case wire.TagDbl:
		if len(data) < 8 {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
		return Value{Tag: tag, Dbl: v}, data[8:], nil

	case wire.TagStr:
		if len(data) < 4 {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		n := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		return Value{Tag: tag, Str: data[:n]}, data[n:], nil

	case wire.TagErr:
		if len(data) < 8 {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		code := wire.ErrorCode(int32(binary.LittleEndian.Uint32(data[:4])))
		n := binary.LittleEndian.Uint32(data[4:8])
		data = data[8:]
		if uint32(len(data)) < n {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		return Value{Tag: tag, ErrCode: code, ErrMsg: string(data[:n])}, data[n:], nil

	case wire.TagArr:
		if len(data) < 4 {
			return Value{}, nil, io.ErrUnexpectedEOF
		}
		n := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		arr := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			var v Value
			var err error
			v, data, err = DecodeValue(data)
			if err != nil {
				return Value{}, nil, err
			}
			arr = append(arr, v)
		}
		return Value{Tag: tag, Arr: arr}, data, nil

	default:
		return Value{}, nil, fmt.Errorf("proto: unknown tag %d", tag)
	}
}

// ToInterface converts a decoded Value tree into plain Go values
// (nil/int64/float64/string/map/[]any) suitable for JSON pretty-printing.
func (v Value) ToInterface() any {
	switch v.Tag {
	case wire.TagNil:
		return nil
	case wire.TagInt:
		return v.Int
	case wire.TagDbl:
		return v.Dbl
	case wire.TagStr:
		return string(v.Str)
	case wire.TagErr:
		return map[string]any{"code": v.ErrCode.String(), "message": v.ErrMsg}
	case wire.TagArr:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.ToInterface()
		}
		return out
	default:
		return nil
	}
}
