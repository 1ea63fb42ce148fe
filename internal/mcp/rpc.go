// Package mcp implements the line-delimited JSON-RPC 2.0 surface the bridge
// exposes on stdio: method names initialize, tools/list and tools/call.
// Stdout carries protocol frames only; all diagnostics go to stderr.
package mcp

import (
	"encoding/json"
	"fmt"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes used on this surface.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("rpc error %d", e.Code)
	}
	return e.Message
}

type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// nullID is the response id when the request line could not be parsed at all.
var nullID = json.RawMessage("null")

func rpcResult(id json.RawMessage, result any) *rpcResponse {
	if len(id) == 0 {
		id = nullID
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func rpcFailure(id json.RawMessage, err *rpcError) *rpcResponse {
	if len(id) == 0 {
		id = nullID
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: err}
}

func invalidParamsError(message string) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: message}
}

func methodNotFoundError(message string) *rpcError {
	return &rpcError{Code: codeMethodNotFound, Message: message}
}
