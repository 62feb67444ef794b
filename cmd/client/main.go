// File: cmd/client/main.go
//
// The client CLI of spec.md section 4.K: argv tail is the command
// token list, one request frame out, one response frame in, decode and
// pretty-print the typed value tree. Exit code is 0 on success, 1 on
// I/O, protocol, or usage error (spec.md section 6). Grounded on
// original_source/client.cpp's single-shot request/response shape, with
// github.com/goccy/go-json standing in for the teacher's pretty-printer
// (internal/adapter/tcp uses the same library for its JSON payloads).
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/stormkv/stormkv/internal/proto"
	"github.com/stormkv/stormkv/internal/wire"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	addr := wire.DefaultAddr
	if v := os.Getenv("STORMKV_ADDR"); v != "" {
		addr = v
	}

	args, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: stormkv-client [-addr host:port] <command> [args...]")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(args.tokens) == 0 {
		fmt.Fprintln(os.Stderr, "usage: stormkv-client [-addr host:port] <command> [args...]")
		return 1
	}
	if args.addr != "" {
		addr = args.addr
	}

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stormkv-client: connect: %v\n", err)
		return 1
	}
	defer conn.Close()

	frame, err := proto.EncodeRequest(args.tokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stormkv-client: encode: %v\n", err)
		return 1
	}
	if _, err := conn.Write(frame); err != nil {
		fmt.Fprintf(os.Stderr, "stormkv-client: write: %v\n", err)
		return 1
	}

	payload, err := proto.ReadFrame(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stormkv-client: read: %v\n", err)
		return 1
	}

	value, rest, err := proto.DecodeValue(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stormkv-client: decode: %v\n", err)
		return 1
	}
	if len(rest) != 0 {
		fmt.Fprintln(os.Stderr, "stormkv-client: trailing bytes after response value")
		return 1
	}

	if value.Tag == wire.TagErr {
		fmt.Fprintf(os.Stderr, "(error) %s: %s\n", value.ErrCode.String(), value.ErrMsg)
		return 1
	}

	printValue(value)
	return 0
}

type parsedArgs struct {
	addr   string
	tokens []string
}

func parseArgs(argv []string) (parsedArgs, error) {
	var out parsedArgs
	i := 0
	for i < len(argv) {
		if argv[i] == "-addr" {
			if i+1 >= len(argv) {
				return out, fmt.Errorf("-addr requires a value")
			}
			out.addr = argv[i+1]
			i += 2
			continue
		}
		break
	}
	out.tokens = argv[i:]
	return out, nil
}

// printValue renders a decoded response. Scalars print directly; arrays
// and error bodies go through goccy/go-json for a structured rendering.
func printValue(v proto.Value) {
	switch v.Tag {
	case wire.TagNil:
		fmt.Println("(nil)")
	case wire.TagStr:
		fmt.Println(string(v.Str))
	case wire.TagInt:
		fmt.Println(v.Int)
	case wire.TagDbl:
		fmt.Println(v.Dbl)
	default:
		out, err := json.MarshalIndent(v.ToInterface(), "", "  ")
		if err != nil {
			fmt.Printf("%v\n", v.ToInterface())
			return
		}
		fmt.Println(string(out))
	}
}
