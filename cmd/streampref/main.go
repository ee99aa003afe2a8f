// Package main implements the streampref service: a continuous
// preference query engine over tuple streams, fed and drained through
// NATS.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "streampref"
)

var (
	flagConfig          string
	flagLogLevel        string
	flagLogFormat       string
	flagShutdownTimeout time.Duration
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Continuous preference queries over tuple streams",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c",
		envOr("STREAMPREF_CONFIG", "configs/streampref.yaml"),
		"path to the configuration file (env: STREAMPREF_CONFIG)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level",
		envOr("STREAMPREF_LOG_LEVEL", "info"),
		"log level: debug, info, warn, error (env: STREAMPREF_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format",
		envOr("STREAMPREF_LOG_FORMAT", "json"),
		"log format: json, text (env: STREAMPREF_LOG_FORMAT)")
	root.PersistentFlags().DurationVar(&flagShutdownTimeout, "shutdown-timeout",
		30*time.Second, "graceful shutdown timeout")

	root.AddCommand(newRunCommand())
	root.AddCommand(newValidateCommand())
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
