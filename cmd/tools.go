package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/httprunner/LogAgent/internal/config"
	"github.com/httprunner/LogAgent/internal/storage"
	"github.com/spf13/cobra"
)

// Operator escape hatches: the same orchestrator operations the MCP tools
// expose, runnable without an MCP client.

func newDevicesCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices registered with the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			retriever, history, err := buildRetriever(settings)
			if err != nil {
				return err
			}
			if history != nil {
				defer history.Close()
			}
			devices, err := retriever.ListDevices(context.Background(), filter)
			if err != nil {
				return err
			}
			return printJSON(devices)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "只返回名称包含该子串的设备")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	var (
		deviceName string
		daysAgo    int
		logTypes   []string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download daily logs for one device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if daysAgo < 0 {
				return fmt.Errorf("--days-ago must be >= 0")
			}
			settings, err := config.Load()
			if err != nil {
				return err
			}
			retriever, history, err := buildRetriever(settings)
			if err != nil {
				return err
			}
			if history != nil {
				defer history.Close()
			}
			results, err := retriever.DownloadDailyLogs(context.Background(), deviceName, daysAgo, logTypes)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&deviceName, "device", "", "设备名（支持服务端模糊匹配）")
	cmd.Flags().IntVar(&daysAgo, "days-ago", 0, "几天前的日志，0 表示今天")
	cmd.Flags().StringSliceVar(&logTypes, "types", nil, "日志类型（client/backend），默认两者")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <device>",
		Short: "Show recent retrieval outcomes for a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := storage.ResolveDatabasePath(config.String(config.EnvHistoryDBPath, ""))
			if err != nil {
				return err
			}
			store, err := storage.OpenHistoryStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			rows, err := store.RecentForDevice(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "最多返回多少条记录")
	return cmd
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
