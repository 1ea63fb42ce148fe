package logagent

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultDownloadTimeout bounds a single artifact fetch. Daily backend
// archives can run into the hundreds of megabytes over store links.
const DefaultDownloadTimeout = 10 * time.Minute

// ArtifactDownloader fetches gateway download links onto local disk.
type ArtifactDownloader struct {
	token      string
	httpClient *http.Client
}

// NewArtifactDownloader builds a downloader reusing the gateway bearer token.
// httpClient may be nil, in which case DefaultDownloadTimeout applies.
func NewArtifactDownloader(token string, httpClient *http.Client) *ArtifactDownloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultDownloadTimeout}
	}
	return &ArtifactDownloader{token: token, httpClient: httpClient}
}

// Fetch streams downloadURL into destPath, creating parent directories and
// truncating any previous artifact at the same path.
func (d *ArtifactDownloader) Fetch(ctx context.Context, downloadURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return errors.Wrap(err, "build download request")
	}
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetch artifact")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errors.Wrapf(err, "create download dir for %s", destPath)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", destPath)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrapf(err, "write %s", destPath)
	}
	log.Debug().Str("path", destPath).Int64("bytes", written).Msg("artifact saved")
	return nil
}

// rewriteWildcardHost fixes download URLs whose host echoes the gateway's
// wildcard bind address. Only the hostname is swapped for the gateway's; the
// download URL keeps its own port. URLs without 0.0.0.0 pass through as-is.
func rewriteWildcardHost(rawURL, gatewayBase string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() != "0.0.0.0" {
		return rawURL
	}
	gateway, err := url.Parse(gatewayBase)
	if err != nil || gateway.Hostname() == "" {
		return rawURL
	}
	if port := parsed.Port(); port != "" {
		parsed.Host = net.JoinHostPort(gateway.Hostname(), port)
	} else {
		parsed.Host = gateway.Hostname()
	}
	return parsed.String()
}

// extractZip unpacks archivePath into destDir, refusing entries that would
// escape it.
func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrapf(err, "open archive %s", archivePath)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "create extract dir %s", destDir)
	}
	for _, entry := range reader.File {
		if err := extractZipEntry(entry, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(entry *zip.File, destDir string) error {
	cleaned := filepath.Clean(filepath.FromSlash(entry.Name))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || filepath.IsAbs(cleaned) {
		return errors.Errorf("archive entry escapes destination: %s", entry.Name)
	}
	target := filepath.Join(destDir, cleaned)

	if entry.FileInfo().IsDir() {
		return errors.Wrapf(os.MkdirAll(target, 0o755), "create dir %s", target)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "create parent dir for %s", target)
	}
	src, err := entry.Open()
	if err != nil {
		return errors.Wrapf(err, "open archive entry %s", entry.Name)
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "create %s", target)
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return errors.Wrapf(err, "write %s", target)
}
