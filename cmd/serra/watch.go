package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jpalmerr/serra"
	"github.com/jpalmerr/serra/config"
	"github.com/jpalmerr/serra/internal/tui"
	"github.com/spf13/cobra"
)

// watchCmd shows the readings in the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show readings in the terminal",
	Long: `Show the greenhouse readings in a full-screen terminal display.

Logs would corrupt the display, so they are discarded unless --log-file is
given. Fetch errors are shown in the display itself.

Example:
  serra watch
  serra watch -c serra.yaml --log-file serra.log`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file")
	watchCmd.Flags().String("log-file", "", "append logs to this file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger := newLogger(logOut)

	display := tui.NewDisplay(cfg.Title, config.Targets(cfg), tea.WithAltScreen())

	opts, err := config.BuildPollerOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build poller options: %w", err)
	}
	p, err := serra.New(append(opts,
		serra.WithSurface(display),
		serra.WithLogger(logger),
		serra.WithCycleCallback(func(r serra.CycleResult) {
			display.ReportCycle(r.Seq, r.Error)
		}),
	)...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p.Start(ctx)
	defer p.Stop()

	go func() {
		<-ctx.Done()
		display.Quit()
	}()

	if err := display.Run(); err != nil {
		return fmt.Errorf("display error: %w", err)
	}
	return nil
}
