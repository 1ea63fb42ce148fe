package logagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultRPCTimeout is deliberately long: the gateway compresses large log
// archives synchronously before answering get_download_link.
const DefaultRPCTimeout = 5 * time.Minute

// Device is a remote host registered with the file gateway. AllowedRoots is
// ordered; the first entry is the base directory logs are derived from.
type Device struct {
	Name         string   `json:"name"`
	AllowedRoots []string `json:"allowed_roots"`
}

// PathInfo is the check_path answer.
type PathInfo struct {
	Exists bool `json:"exists"`
}

// DownloadDescriptor is the get_download_link answer. A FileSize of 0 means
// the remote path exists but holds nothing worth fetching.
type DownloadDescriptor struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	Compressed  bool   `json:"compressed"`
	ExpiresAt   string `json:"expires_at"`
}

// TransportError reports an HTTP-level failure talking to the gateway. For
// non-2xx answers Status and Body carry the response verbatim; for network
// failures Err carries the cause and Status is 0.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway transport: %v", e.Err)
	}
	return fmt.Sprintf("gateway transport: status=%d body=%s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a JSON-RPC error object returned by the gateway.
type ProtocolError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gateway rpc error %d: %s", e.Code, e.Message)
}

// GatewayClient is the remote file gateway surface the retriever needs.
type GatewayClient interface {
	ListDevices(ctx context.Context) ([]Device, error)
	SelectDevice(ctx context.Context, deviceName string) (*Device, error)
	CheckPath(ctx context.Context, path string) (*PathInfo, error)
	GetDownloadLink(ctx context.Context, paths []string, description string) (*DownloadDescriptor, error)
}

// RemoteFileClient talks JSON-RPC 2.0 over HTTP POST to {base}/messages.
type RemoteFileClient struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
}

// NewRemoteFileClient builds a gateway client. httpClient may be nil, in
// which case a client with DefaultRPCTimeout is used.
func NewRemoteFileClient(baseURL, token string, httpClient *http.Client) (*RemoteFileClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("gateway base url is empty")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("gateway token is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRPCTimeout}
	}
	return &RemoteFileClient{
		baseURL:    baseURL,
		token:      token,
		sessionID:  "go-mcp-" + uuid.NewString(),
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the configured gateway endpoint.
func (c *RemoteFileClient) BaseURL() string { return c.baseURL }

// SessionID returns the per-process session identifier sent with every call.
func (c *RemoteFileClient) SessionID() string { return c.sessionID }

// Call issues one JSON-RPC request and returns the raw result field. An
// absent result decodes to nil, not an error; retries are the caller's
// business.
func (c *RemoteFileClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	log.Debug().Str("method", method).Msg("calling gateway")
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", method)
	}
	endpoint := c.baseURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", method)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  *ProtocolError  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", method)
	}
	if parsed.Error != nil {
		return nil, parsed.Error
	}
	return parsed.Result, nil
}

func (c *RemoteFileClient) ListDevices(ctx context.Context) ([]Device, error) {
	raw, err := c.Call(ctx, "list_devices", map[string]any{})
	if err != nil {
		return nil, err
	}
	var devices []Device
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &devices); err != nil {
			return nil, errors.Wrap(err, "decode device list")
		}
	}
	return devices, nil
}

func (c *RemoteFileClient) SelectDevice(ctx context.Context, deviceName string) (*Device, error) {
	raw, err := c.Call(ctx, "select_device", map[string]any{"device_name": deviceName})
	if err != nil {
		return nil, err
	}
	var device Device
	if err := json.Unmarshal(raw, &device); err != nil {
		return nil, errors.Wrapf(err, "decode device %s", deviceName)
	}
	return &device, nil
}

func (c *RemoteFileClient) CheckPath(ctx context.Context, path string) (*PathInfo, error) {
	raw, err := c.Call(ctx, "check_path", map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	var info PathInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, errors.Wrap(err, "decode check_path response")
	}
	return &info, nil
}

func (c *RemoteFileClient) GetDownloadLink(ctx context.Context, paths []string, description string) (*DownloadDescriptor, error) {
	raw, err := c.Call(ctx, "get_download_link", map[string]any{
		"paths":       paths,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	var desc DownloadDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, errors.Wrap(err, "decode download link")
	}
	return &desc, nil
}
