package main

import (
	"os"

	"github.com/httprunner/LogAgent/internal/config"
	"github.com/httprunner/LogAgent/internal/env"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "logagent",
	Short: "MCP bridge for pulling daily device logs from the remote file gateway",
	Long:  `logagent 将 remote-file-agent 网关封装为 MCP 工具：按日期解析门店设备的 Client/Backend 日志路径，获取下载链接并落盘解压；serve 子命令以 stdio JSON-RPC 对外提供 list_devices 与 download_daily_logs。`,
}

func init() {
	_ = env.Ensure()
	configureLogging()
	rootCmd.AddCommand(
		newServeCmd(),
		newDevicesCmd(),
		newDownloadCmd(),
		newHistoryCmd(),
	)
}

// configureLogging keeps diagnostics on stderr only: stdout belongs to the
// MCP framing. LOG_FILE adds a rotating file sink next to the console.
func configureLogging() {
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	if logFile := config.String(config.EnvLogFile, ""); logFile != "" {
		fileSink := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // MB
			MaxBackups: 7,
			MaxAge:     14, // days
			Compress:   true,
		}
		log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, fileSink)).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("logagent command failed")
	}
}
