package logagent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNoAllowedRoots means the selected device has no configured roots to
// derive log paths from. The whole tool call aborts on it.
var ErrNoAllowedRoots = errors.New("device has no allowed_roots configured")

// RetrievalStatus tags the outcome of one log kind.
type RetrievalStatus string

const (
	StatusSuccess RetrievalStatus = "success"
	StatusSkipped RetrievalStatus = "skipped"
	StatusFailed  RetrievalStatus = "failed"
)

// RetrievalResult records the outcome for one requested log kind. Exactly
// one of the three statuses holds; LocalPath and the descriptor fields are
// only set on success.
type RetrievalResult struct {
	LogType      string          `json:"log_type"`
	Date         string          `json:"date"`
	Path         string          `json:"path"`
	Status       RetrievalStatus `json:"status"`
	Message      string          `json:"message,omitempty"`
	DownloadURL  string          `json:"download_url,omitempty"`
	FileName     string          `json:"file_name,omitempty"`
	FileSize     int64           `json:"file_size,omitempty"`
	Compressed   bool            `json:"compressed,omitempty"`
	ExpiresAt    string          `json:"expires_at,omitempty"`
	LocalPath    string          `json:"local_path,omitempty"`
	ExtractedDir string          `json:"extracted_dir,omitempty"`
}

type artifactFetcher interface {
	Fetch(ctx context.Context, downloadURL, destPath string) error
}

// HistoryRecorder mirrors per-kind outcomes to durable storage. Best effort:
// the retriever logs failures and moves on.
type HistoryRecorder interface {
	RecordBatch(ctx context.Context, device, date string, results []RetrievalResult) error
}

// Notifier pushes a human-readable digest of a finished batch. Best effort.
type Notifier interface {
	NotifyBatch(ctx context.Context, device, date string, results []RetrievalResult) error
}

// Retriever drives the daily log workflow against the file gateway.
type Retriever struct {
	gateway      GatewayClient
	fetcher      artifactFetcher
	gatewayBase  string
	downloadRoot string
	clock        func() time.Time
	history      HistoryRecorder
	notifier     Notifier
}

// RetrieverConfig wires a Retriever. Gateway, Fetcher and DownloadRoot are
// required; Clock defaults to time.Now, History and Notifier may stay nil.
type RetrieverConfig struct {
	Gateway      GatewayClient
	Fetcher      artifactFetcher
	GatewayBase  string
	DownloadRoot string
	Clock        func() time.Time
	History      HistoryRecorder
	Notifier     Notifier
}

func NewRetriever(cfg RetrieverConfig) (*Retriever, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("retriever requires a gateway client")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("retriever requires an artifact fetcher")
	}
	if strings.TrimSpace(cfg.DownloadRoot) == "" {
		return nil, errors.New("retriever requires a download root")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Retriever{
		gateway:      cfg.Gateway,
		fetcher:      cfg.Fetcher,
		gatewayBase:  strings.TrimSpace(cfg.GatewayBase),
		downloadRoot: cfg.DownloadRoot,
		clock:        clock,
		history:      cfg.History,
		notifier:     cfg.Notifier,
	}, nil
}

// ListDevices returns the gateway's device list, optionally narrowed to
// names containing filter. Matching is a plain substring check; fuzzy
// resolution stays server-side in select_device.
func (r *Retriever) ListDevices(ctx context.Context, filter string) ([]Device, error) {
	devices, err := r.gateway.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return devices, nil
	}
	matched := make([]Device, 0, len(devices))
	for _, device := range devices {
		if strings.Contains(device.Name, filter) {
			matched = append(matched, device)
		}
	}
	return matched, nil
}

// DownloadDailyLogs resolves the device, derives one remote path per
// requested kind for today minus daysAgo, and downloads whatever exists.
// Unknown kinds and duplicates are dropped; per-kind failures land in the
// result entries and never abort sibling kinds. Only device-level
// preconditions return an error.
func (r *Retriever) DownloadDailyLogs(ctx context.Context, deviceName string, daysAgo int, logTypes []string) ([]RetrievalResult, error) {
	if len(logTypes) == 0 {
		logTypes = []string{LogTypeClient, LogTypeBackend}
	}

	device, err := r.gateway.SelectDevice(ctx, deviceName)
	if err != nil {
		return nil, errors.Wrapf(err, "select device %s", deviceName)
	}
	if len(device.AllowedRoots) == 0 {
		return nil, ErrNoAllowedRoots
	}
	base := strings.TrimRight(device.AllowedRoots[0], `/\`)
	date := logDate(r.clock(), daysAgo)

	results := make([]RetrievalResult, 0, len(logTypes))
	seen := make(map[string]bool, len(logTypes))
	for _, logType := range logTypes {
		if logType != LogTypeClient && logType != LogTypeBackend {
			continue
		}
		if seen[logType] {
			continue
		}
		seen[logType] = true
		results = append(results, r.retrieveOne(ctx, device.Name, base, logType, date, daysAgo))
	}

	r.recordBatch(ctx, device.Name, date, results)
	return results, nil
}

func (r *Retriever) retrieveOne(ctx context.Context, deviceName, base, logType, date string, daysAgo int) RetrievalResult {
	result := RetrievalResult{LogType: logType, Date: date, Path: dailyLogPath(base, logType, date, daysAgo)}

	info, err := r.gateway.CheckPath(ctx, result.Path)
	if err != nil {
		return r.degrade(result, errors.Wrap(err, "check path").Error())
	}
	if !info.Exists {
		// Backend archives legitimately lag a day on quiet stores; a
		// missing client log directory is always an anomaly.
		if logType == LogTypeBackend {
			result.Status = StatusSkipped
			result.Message = "path does not exist"
			return result
		}
		result.Status = StatusFailed
		result.Message = "path does not exist"
		return result
	}

	desc, err := r.gateway.GetDownloadLink(ctx, []string{result.Path}, fmt.Sprintf("%s-logs-%s", logType, date))
	if err != nil {
		return r.degrade(result, errors.Wrap(err, "get download link").Error())
	}
	if desc.FileSize == 0 {
		result.Status = StatusFailed
		result.Message = "no log files present"
		return result
	}

	result.DownloadURL = rewriteWildcardHost(desc.DownloadURL, r.gatewayBase)
	result.FileName = desc.FileName
	result.FileSize = desc.FileSize
	result.Compressed = desc.Compressed
	result.ExpiresAt = desc.ExpiresAt

	localPath := filepath.Join(r.downloadRoot, sanitizeDeviceName(deviceName), date, desc.FileName)
	if err := r.fetcher.Fetch(ctx, result.DownloadURL, localPath); err != nil {
		result.DownloadURL, result.FileName, result.FileSize = "", "", 0
		result.Compressed, result.ExpiresAt = false, ""
		return r.degrade(result, errors.Wrap(err, "download artifact").Error())
	}
	result.Status = StatusSuccess
	result.LocalPath = localPath

	if strings.HasSuffix(desc.FileName, ".zip") {
		extractDir := strings.TrimSuffix(localPath, ".zip")
		if err := extractZip(localPath, extractDir); err != nil {
			// Non-fatal: the archive itself is already on disk.
			log.Warn().Err(err).Str("archive", localPath).Msg("extract failed, keeping raw archive")
		} else {
			result.ExtractedDir = extractDir
		}
	}
	return result
}

// degrade applies the asymmetric failure policy: backend retrieval is best
// effort, client retrieval is expected to work.
func (r *Retriever) degrade(result RetrievalResult, message string) RetrievalResult {
	result.Message = message
	if result.LogType == LogTypeBackend {
		result.Status = StatusSkipped
		log.Warn().Str("log_type", result.LogType).Str("path", result.Path).Str("reason", message).Msg("backend log skipped")
	} else {
		result.Status = StatusFailed
		log.Error().Str("log_type", result.LogType).Str("path", result.Path).Str("reason", message).Msg("log retrieval failed")
	}
	return result
}

func (r *Retriever) recordBatch(ctx context.Context, device, date string, results []RetrievalResult) {
	if r.history != nil {
		if err := r.history.RecordBatch(ctx, device, date, results); err != nil {
			log.Warn().Err(err).Msg("record retrieval history failed")
		}
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyBatch(ctx, device, date, results); err != nil {
			log.Warn().Err(err).Msg("send retrieval digest failed")
		}
	}
}
