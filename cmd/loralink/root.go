package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brewern5/LoRa-Research/internal/config"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "loralink"
	serviceVersion    = "1.0.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "loralink",
	Short: "LoRa audio transfer tools",
	Long: `loralink builds, analyzes and collects LoRa audio transfers.

It fragments audio buffers into radio packets, estimates time on air for
a given modulation, reconstructs transfer sessions from receiver logs
and runs a live UDP collector with an HTTP monitoring API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath,
		"Path to configuration file")
}

// loadConfig loads the configuration file, falling back to defaults when
// the default path does not exist and was not explicitly requested.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.Load(configPath)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
