package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StdioTransport reads line-delimited JSON-RPC requests from in and writes
// one response line per request to out. Strictly serial: a request is fully
// handled, its response written and flushed, before the next line is read.
type StdioTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
}

func NewStdioTransport(server *Server, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{server: server, in: in, out: out}
}

// Serve runs until the input stream is exhausted (clean return) or the
// context is cancelled. A line that is not valid JSON yields a -32700
// response with a null id and the loop continues.
func (t *StdioTransport) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	// Tool results embed whole serialized payloads; default 64K is too tight.
	const maxLine = 4 * 1024 * 1024
	scanner.Buffer(make([]byte, maxLine), maxLine)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("context cancelled, stopping stdio loop")
			return ctx.Err()
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "read stdin")
			}
			log.Info().Msg("stdin closed, stopping stdio loop")
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		var resp *rpcResponse
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn().Err(err).Msg("malformed request line")
			resp = rpcFailure(nullID, &rpcError{Code: codeParseError, Message: "Parse error: " + err.Error()})
		} else {
			log.Debug().Str("method", req.Method).Msg("handling request")
			resp = t.server.Handle(ctx, req)
		}

		if err := t.write(resp); err != nil {
			return errors.Wrap(err, "write response")
		}
	}
}

func (t *StdioTransport) write(resp *rpcResponse) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		// Keep the framing alive even when a result refuses to marshal.
		encoded = []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	_, err = fmt.Fprintf(t.out, "%s\n", encoded)
	return err
}
