package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Environment variable names the bridge reads. MCP_URL / MCP_TOKEN keep the
// names the remote-file-agent deployment already ships with.
const (
	EnvGatewayURL       = "MCP_URL"
	EnvGatewayToken     = "MCP_TOKEN"
	EnvDownloadRoot     = "DOWNLOAD_ROOT"
	EnvRPCTimeout       = "RPC_TIMEOUT"
	EnvDownloadTimeout  = "DOWNLOAD_TIMEOUT"
	EnvLogFile          = "LOG_FILE"
	EnvHistoryDBPath    = "HISTORY_DB_PATH"
	EnvHistoryRetention = "HISTORY_RETENTION_DAYS"
	EnvFeishuAppID      = "FEISHU_APP_ID"
	EnvFeishuAppSecret  = "FEISHU_APP_SECRET"
	EnvFeishuChatID     = "FEISHU_NOTIFY_CHAT_ID"
)

// Settings is the resolved process configuration.
type Settings struct {
	GatewayURL      string
	GatewayToken    string
	DownloadRoot    string
	RPCTimeout      time.Duration
	DownloadTimeout time.Duration
	LogFile         string
	HistoryDBPath   string
	RetentionDays   int
	FeishuAppID     string
	FeishuAppSecret string
	FeishuChatID    string
}

// Load resolves all settings from the environment. Missing required values
// are a startup failure, never a per-request one.
func Load() (*Settings, error) {
	s := &Settings{
		GatewayURL:      String(EnvGatewayURL, ""),
		GatewayToken:    String(EnvGatewayToken, ""),
		DownloadRoot:    String(EnvDownloadRoot, ""),
		RPCTimeout:      Duration(EnvRPCTimeout, 5*time.Minute),
		DownloadTimeout: Duration(EnvDownloadTimeout, 10*time.Minute),
		LogFile:         String(EnvLogFile, ""),
		HistoryDBPath:   String(EnvHistoryDBPath, ""),
		RetentionDays:   Int(EnvHistoryRetention, 30),
		FeishuAppID:     String(EnvFeishuAppID, ""),
		FeishuAppSecret: String(EnvFeishuAppSecret, ""),
		FeishuChatID:    String(EnvFeishuChatID, ""),
	}

	var missing []string
	if s.GatewayURL == "" {
		missing = append(missing, EnvGatewayURL)
	}
	if s.GatewayToken == "" {
		missing = append(missing, EnvGatewayToken)
	}
	if s.DownloadRoot == "" {
		missing = append(missing, EnvDownloadRoot)
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// FeishuConfigured reports whether the optional notification digest has a
// complete credential set.
func (s *Settings) FeishuConfigured() bool {
	return s.FeishuAppID != "" && s.FeishuAppSecret != "" && s.FeishuChatID != ""
}
