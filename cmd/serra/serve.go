package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/serra"
	"github.com/jpalmerr/serra/config"
	"github.com/jpalmerr/serra/internal/mqttsink"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the web dashboard.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long: `Start the greenhouse web dashboard.

The server will:
  - Load configuration from the specified YAML file (or use defaults)
  - Poll the snapshot endpoint once immediately, then every interval
  - Serve the dashboard UI on the configured port
  - Publish every reading to MQTT when a broker is configured

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  serra serve
  serra serve -c /etc/serra/serra.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"base_url", cfg.Source.BaseURL,
		"interval", cfg.Source.Interval.Duration().String(),
		"port", cfg.Server.Port,
		"mqtt", cfg.MQTT.Enabled(),
	)

	dash, err := serra.NewDashboard(append(config.BuildDashboardOptions(cfg),
		serra.WithDashboardLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	surfaces := []serra.Surface{dash.Surface()}
	if mc, ok := config.BuildMQTTConfig(cfg); ok {
		sink, err := mqttsink.Connect(mc, config.Targets(cfg), logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		surfaces = append(surfaces, sink)
	}

	opts, err := config.BuildPollerOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build poller options: %w", err)
	}
	p, err := serra.New(append(opts,
		serra.WithSurface(serra.MultiSurface(surfaces...)),
		serra.WithLogger(logger),
	)...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- dash.Start(ctx, p)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
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
