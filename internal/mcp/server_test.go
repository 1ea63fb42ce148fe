package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	logagent "github.com/httprunner/LogAgent"
)

type stubService struct {
	devices       []logagent.Device
	listErr       error
	results       []logagent.RetrievalResult
	downloadErr   error
	gotFilter     string
	gotDevice     string
	gotDaysAgo    int
	gotLogTypes   []string
	downloadCalls int
}

func (s *stubService) ListDevices(ctx context.Context, filter string) ([]logagent.Device, error) {
	s.gotFilter = filter
	return s.devices, s.listErr
}

func (s *stubService) DownloadDailyLogs(ctx context.Context, deviceName string, daysAgo int, logTypes []string) ([]logagent.RetrievalResult, error) {
	s.downloadCalls++
	s.gotDevice = deviceName
	s.gotDaysAgo = daysAgo
	s.gotLogTypes = logTypes
	return s.results, s.downloadErr
}

func request(t *testing.T, id, method, params string) rpcRequest {
	t.Helper()
	req := rpcRequest{JSONRPC: "2.0", Method: method}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return req
}

func TestHandleInitialize(t *testing.T) {
	server := NewServer(&stubService{})
	resp := server.Handle(context.Background(), request(t, "7", "initialize", "{}"))
	if resp.Error != nil {
		t.Fatalf("initialize error: %v", resp.Error)
	}
	if string(resp.ID) != "7" {
		t.Fatalf("response id = %s", resp.ID)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	if result["protocolVersion"] != protocolVersion {
		t.Fatalf("protocol version = %v", result["protocolVersion"])
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != serverName {
		t.Fatalf("server name = %v", info["name"])
	}
}

func TestHandleToolsList(t *testing.T) {
	server := NewServer(&stubService{})
	resp := server.Handle(context.Background(), request(t, "1", "tools/list", ""))
	if resp.Error != nil {
		t.Fatalf("tools/list error: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]toolDefinition)
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "list_devices" || tools[1].Name != "download_daily_logs" {
		t.Fatalf("tool names = %s, %s", tools[0].Name, tools[1].Name)
	}
	required, _ := tools[1].InputSchema["required"].([]string)
	if len(required) != 1 || required[0] != "device_name" {
		t.Fatalf("download tool required = %v", required)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	server := NewServer(&stubService{})
	resp := server.Handle(context.Background(), request(t, "3", "resources/list", ""))
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
	if string(resp.ID) != "3" {
		t.Fatalf("error response must echo the id, got %s", resp.ID)
	}
}

func TestToolCallListDevices(t *testing.T) {
	service := &stubService{devices: []logagent.Device{{Name: "西小口店", AllowedRoots: []string{`D:\CXJPos`}}}}
	server := NewServer(service)
	resp := server.Handle(context.Background(), request(t, "2", "tools/call",
		`{"name":"list_devices","arguments":{"device_name_filter":"西"}}`))
	if resp.Error != nil {
		t.Fatalf("tools/call error: %v", resp.Error)
	}
	if service.gotFilter != "西" {
		t.Fatalf("filter = %q", service.gotFilter)
	}
	result := resp.Result.(toolResult)
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("content = %+v", result.Content)
	}
	if !strings.Contains(result.Content[0].Text, "西小口店") {
		t.Fatalf("serialized devices missing name: %s", result.Content[0].Text)
	}
}

func TestToolCallDownloadCoercesArguments(t *testing.T) {
	service := &stubService{results: []logagent.RetrievalResult{{LogType: "client", Status: logagent.StatusSuccess}}}
	server := NewServer(service)
	// days_ago decodes as float64 through map[string]any.
	resp := server.Handle(context.Background(), request(t, "5", "tools/call",
		`{"name":"download_daily_logs","arguments":{"device_name":"Store-A","days_ago":2,"log_types":["client"]}}`))
	if resp.Error != nil {
		t.Fatalf("tools/call error: %v", resp.Error)
	}
	if service.gotDevice != "Store-A" || service.gotDaysAgo != 2 {
		t.Fatalf("arguments lost: device=%q days=%d", service.gotDevice, service.gotDaysAgo)
	}
	if len(service.gotLogTypes) != 1 || service.gotLogTypes[0] != "client" {
		t.Fatalf("log types = %v", service.gotLogTypes)
	}
	result := resp.Result.(toolResult)
	if !strings.Contains(result.Content[0].Text, `"status":"success"`) {
		t.Fatalf("serialized results = %s", result.Content[0].Text)
	}
}

func TestToolCallDownloadDefaults(t *testing.T) {
	service := &stubService{}
	server := NewServer(service)
	resp := server.Handle(context.Background(), request(t, "5", "tools/call",
		`{"name":"download_daily_logs","arguments":{"device_name":"Store-A"}}`))
	if resp.Error != nil {
		t.Fatalf("tools/call error: %v", resp.Error)
	}
	if service.gotDaysAgo != 0 {
		t.Fatalf("default days_ago = %d, want 0", service.gotDaysAgo)
	}
	if service.gotLogTypes != nil {
		t.Fatalf("default log types should stay nil, got %v", service.gotLogTypes)
	}
}

func TestToolCallDownloadValidation(t *testing.T) {
	service := &stubService{}
	server := NewServer(service)

	resp := server.Handle(context.Background(), request(t, "1", "tools/call",
		`{"name":"download_daily_logs","arguments":{}}`))
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("missing device_name: %+v", resp.Error)
	}

	resp = server.Handle(context.Background(), request(t, "2", "tools/call",
		`{"name":"download_daily_logs","arguments":{"device_name":"A","days_ago":-1}}`))
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("negative days_ago: %+v", resp.Error)
	}

	resp = server.Handle(context.Background(), request(t, "3", "tools/call",
		`{"name":"download_daily_logs","arguments":{"device_name":"A","days_ago":"soon"}}`))
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("string days_ago: %+v", resp.Error)
	}

	if service.downloadCalls != 0 {
		t.Fatalf("invalid arguments must not reach the service")
	}
}

func TestToolCallUnknownTool(t *testing.T) {
	server := NewServer(&stubService{})
	resp := server.Handle(context.Background(), request(t, "9", "tools/call",
		`{"name":"reboot_device","arguments":{}}`))
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("unknown tool: %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "reboot_device") {
		t.Fatalf("unknown tool message = %q", resp.Error.Message)
	}
}

func TestToolCallServiceErrorBecomesEnvelope(t *testing.T) {
	service := &stubService{downloadErr: errors.New("device has no allowed_roots configured")}
	server := NewServer(service)
	resp := server.Handle(context.Background(), request(t, "4", "tools/call",
		`{"name":"download_daily_logs","arguments":{"device_name":"Store-A"}}`))
	if resp.Error == nil || resp.Error.Code != codeInternalError {
		t.Fatalf("expected internal error envelope, got %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "allowed_roots") {
		t.Fatalf("error message = %q", resp.Error.Message)
	}
}
