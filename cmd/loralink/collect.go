package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brewern5/LoRa-Research/internal/metrics"
	"github.com/brewern5/LoRa-Research/internal/server"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the live observation collector",
	Long: `Starts the UDP collector, which ingests observation records streamed
by receiver nodes and reconstructs transfer sessions in memory, plus the
HTTP monitoring API when enabled.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Collector.UDPPort),
		slog.String("bind_address", cfg.Collector.BindAddress),
		slog.Int("buffer_size", cfg.Collector.BufferSize),
		slog.Int("sf", cfg.Radio.SF),
		slog.Int("cr", cfg.Radio.CR),
		slog.Float64("bw_khz", cfg.Radio.BWKhz),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	collector := server.NewUDPCollector(&cfg.Collector, logger, appMetrics)
	logger.Info("UDP collector initialized")

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, collector, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	if err := collector.Start(); err != nil {
		logger.Error("Failed to start UDP collector", slog.String("error", err.Error()))
		return err
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			return err
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Collector.BindAddress, cfg.Collector.UDPPort)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := collector.Stop(); err != nil {
		logger.Error("Error stopping UDP collector", slog.String("error", err.Error()))
	}

	stats := collector.GetStatistics()
	logger.Info("Final collector statistics",
		slog.Uint64("datagrams_received", stats.DatagramsReceived),
		slog.Uint64("records_applied", stats.RecordsApplied),
		slog.Uint64("malformed_records", stats.MalformedRecords),
		slog.Uint64("known_sessions", stats.KnownSessions),
	)

	logger.Info("Service stopped")
	return nil
}
