package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	logagent "github.com/httprunner/LogAgent"
)

const (
	serverName    = "remote-log-downloader"
	serverVersion = "1.0.0"

	toolListDevices       = "list_devices"
	toolDownloadDailyLogs = "download_daily_logs"
)

// LogService is the orchestrator surface the dispatcher binds tools to.
type LogService interface {
	ListDevices(ctx context.Context, filter string) ([]logagent.Device, error)
	DownloadDailyLogs(ctx context.Context, deviceName string, daysAgo int, logTypes []string) ([]logagent.RetrievalResult, error)
}

// Server dispatches parsed MCP requests to the log service.
type Server struct {
	service LogService
}

func NewServer(service LogService) *Server {
	return &Server{service: service}
}

// Handle produces exactly one response for one request, echoing its id.
func (s *Server) Handle(ctx context.Context, req rpcRequest) *rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": serverName, "version": serverVersion},
		})
	case "tools/list":
		return rpcResult(req.ID, map[string]any{"tools": toolDefinitions()})
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		return rpcFailure(req.ID, methodNotFoundError(fmt.Sprintf("unknown method: %s", req.Method)))
	}
}

func toolDefinitions() []toolDefinition {
	return []toolDefinition{
		{
			Name:        toolListDevices,
			Description: "列出所有在线设备",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device_name_filter": map[string]any{
						"type":        "string",
						"description": "Only return devices whose name contains this substring",
					},
				},
			},
		},
		{
			Name:        toolDownloadDailyLogs,
			Description: "Download device logs for a specific date and unpack archives locally",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device_name": map[string]any{
						"type":        "string",
						"description": "Device name (supports fuzzy matching, e.g., '西小口店')",
					},
					"days_ago": map[string]any{
						"type":        "integer",
						"description": "Number of days ago (0=today, 1=yesterday, etc.)",
						"default":     0,
					},
					"log_types": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": []string{"client", "backend"}},
						"description": "Types of logs to download",
						"default":     []string{"client", "backend"},
					},
				},
				"required": []string{"device_name"},
			},
		},
	}
}

func (s *Server) handleToolCall(ctx context.Context, req rpcRequest) *rpcResponse {
	if len(req.Params) == 0 {
		return rpcFailure(req.ID, invalidParamsError("missing params"))
	}
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpcFailure(req.ID, invalidParamsError("invalid tools/call params"))
	}

	switch params.Name {
	case toolListDevices:
		filter, err := stringArg(params.Arguments, "device_name_filter", false)
		if err != nil {
			return rpcFailure(req.ID, invalidParamsError(err.Error()))
		}
		devices, err := s.service.ListDevices(ctx, filter)
		if err != nil {
			return rpcFailure(req.ID, &rpcError{Code: codeInternalError, Message: err.Error()})
		}
		return textResult(req.ID, devices)
	case toolDownloadDailyLogs:
		deviceName, err := stringArg(params.Arguments, "device_name", true)
		if err != nil {
			return rpcFailure(req.ID, invalidParamsError(err.Error()))
		}
		daysAgo, err := intArg(params.Arguments, "days_ago", 0)
		if err != nil {
			return rpcFailure(req.ID, invalidParamsError(err.Error()))
		}
		if daysAgo < 0 {
			return rpcFailure(req.ID, invalidParamsError("days_ago must be >= 0"))
		}
		logTypes, err := stringSliceArg(params.Arguments, "log_types")
		if err != nil {
			return rpcFailure(req.ID, invalidParamsError(err.Error()))
		}
		results, err := s.service.DownloadDailyLogs(ctx, deviceName, daysAgo, logTypes)
		if err != nil {
			return rpcFailure(req.ID, &rpcError{Code: codeInternalError, Message: err.Error()})
		}
		return textResult(req.ID, results)
	default:
		return rpcFailure(req.ID, invalidParamsError(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
}

// textResult serializes value into a single MCP text content block.
func textResult(id json.RawMessage, value any) *rpcResponse {
	encoded, err := json.Marshal(value)
	if err != nil {
		return rpcFailure(id, &rpcError{Code: codeInternalError, Message: "encode tool result: " + err.Error()})
	}
	return rpcResult(id, toolResult{Content: []contentItem{{Type: "text", Text: string(encoded)}}})
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("missing required argument: %s", key)
		}
		return "", nil
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string", key)
	}
	if required && strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	return val, nil
}

// intArg tolerates the shapes a JSON decoder may hand over for an integer.
func intArg(args map[string]any, key string, fallback int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch val := raw.(type) {
	case float64:
		return int(val), nil
	case int:
		return val, nil
	case json.Number:
		parsed, err := val.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %s must be an integer", key)
		}
		return int(parsed), nil
	default:
		return 0, fmt.Errorf("argument %s must be an integer", key)
	}
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %s must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		val, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %s must be an array of strings", key)
		}
		out = append(out, val)
	}
	return out, nil
}
