package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildwatch/buildwatch"
	"github.com/buildwatch/buildwatch/config"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the poller continuously.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start continuous polling",
	Long: `Start buildwatch as a long-running daemon.

The daemon will:
  - Load configuration from the specified YAML file
  - Poll all configured CI projects on the short cadence
  - Poll all configured trackers on the long cadence
  - Record every workload outcome to the configured store

The daemon runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  buildwatch serve -c config.yaml
  buildwatch serve --config /etc/buildwatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"projects", len(cfg.Projects),
		"trackers", len(cfg.Trackers),
		"poll_interval", cfg.PollInterval.Duration().String(),
		"tracker_interval", cfg.TrackerInterval.Duration().String(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, buildwatch.WithLogger(logger))

	w, err := buildwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
