package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logagent "github.com/httprunner/LogAgent"
	"github.com/httprunner/LogAgent/internal/config"
	"github.com/httprunner/LogAgent/internal/mcp"
	"github.com/httprunner/LogAgent/internal/notify"
	"github.com/httprunner/LogAgent/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			return runServe(settings)
		},
	}
}

func runServe(settings *config.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retriever, history, err := buildRetriever(settings)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	transport := mcp.NewStdioTransport(mcp.NewServer(retriever), os.Stdin, os.Stdout)
	log.Info().Str("gateway", settings.GatewayURL).Str("download_root", settings.DownloadRoot).Msg("MCP server ready, waiting for requests")

	group, groupCtx := errgroup.WithContext(ctx)
	if history != nil {
		retention := time.Duration(settings.RetentionDays) * 24 * time.Hour
		logagent.GroupGoSafe(groupCtx, group, "history-pruner", func(ctx context.Context) error {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := history.PruneOlderThan(ctx, retention); err != nil {
						log.Warn().Err(err).Msg("history prune failed")
					}
				}
			}
		})
	}

	serveErr := transport.Serve(groupCtx)
	stop()
	if waitErr := group.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		log.Warn().Err(waitErr).Msg("background worker exited with error")
	}
	if errors.Is(serveErr, context.Canceled) {
		return nil
	}
	return serveErr
}

// buildRetriever wires the gateway client, downloader and the optional
// history/notification capabilities from resolved settings.
func buildRetriever(settings *config.Settings) (*logagent.Retriever, *storage.HistoryStore, error) {
	gateway, err := logagent.NewRemoteFileClient(settings.GatewayURL, settings.GatewayToken,
		&http.Client{Timeout: settings.RPCTimeout})
	if err != nil {
		return nil, nil, err
	}
	fetcher := logagent.NewArtifactDownloader(settings.GatewayToken,
		&http.Client{Timeout: settings.DownloadTimeout})

	var history *storage.HistoryStore
	dbPath, err := storage.ResolveDatabasePath(settings.HistoryDBPath)
	if err != nil {
		log.Warn().Err(err).Msg("history database unavailable, continuing without it")
	} else if history, err = storage.OpenHistoryStore(dbPath); err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("open history database failed, continuing without it")
		history = nil
	}

	var notifier logagent.Notifier
	if settings.FeishuConfigured() {
		feishu, err := notify.NewFeishuNotifier(settings.FeishuAppID, settings.FeishuAppSecret, settings.FeishuChatID)
		if err != nil {
			log.Warn().Err(err).Msg("feishu notifier disabled")
		} else {
			notifier = feishu
		}
	}

	cfg := logagent.RetrieverConfig{
		Gateway:      gateway,
		Fetcher:      fetcher,
		GatewayBase:  settings.GatewayURL,
		DownloadRoot: settings.DownloadRoot,
		Notifier:     notifier,
	}
	if history != nil {
		cfg.History = history
	}
	retriever, err := logagent.NewRetriever(cfg)
	if err != nil {
		return nil, nil, err
	}
	return retriever, history, nil
}
