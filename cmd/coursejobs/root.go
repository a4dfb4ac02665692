package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/course-jobs/internal/common"
)

var (
	logLevel string
	cfg      *common.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coursejobs",
	Short: "Background jobs for course material processing",
	Long: `coursejobs runs the job API, the queue workers and the operator tools
for document extraction, slide rasterization and AI course generation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = common.LoadConfig()
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		logger = newLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error (overrides LOG_LEVEL)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
