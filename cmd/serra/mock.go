package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/serra/internal/sensorsim"
	"github.com/spf13/cobra"
)

// mockCmd serves simulated snapshots.
var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve simulated greenhouse snapshots",
	Long: `Serve a simulated greenhouse controller on GET /get_data.

Readings drift between requests. With --drop-rate above zero some fields
are occasionally omitted or reported as zero.

Example:
  serra mock
  serra mock --addr :5001 --seed 42 --drop-rate 0.2`,
	RunE: runMock,
}

func init() {
	rootCmd.AddCommand(mockCmd)

	mockCmd.Flags().String("addr", ":5000", "listen address")
	mockCmd.Flags().Int64("seed", 0, "random seed (0 picks one from the clock)")
	mockCmd.Flags().Float64("drop-rate", 0.05, "probability a field is omitted or zeroed")
}

func runMock(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr)

	addr, _ := cmd.Flags().GetString("addr")
	seed, _ := cmd.Flags().GetInt64("seed")
	dropRate, _ := cmd.Flags().GetFloat64("drop-rate")

	opts := []sensorsim.Option{sensorsim.WithDropRate(dropRate), sensorsim.WithLogger(logger)}
	if seed != 0 {
		opts = append(opts, sensorsim.WithSeed(seed))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           sensorsim.NewHandler(opts...).Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("mock controller listening", "addr", addr, "path", sensorsim.Path)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("mock server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mock server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
