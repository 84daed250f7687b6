// Package main is the entry point for the serra CLI.
//
// serra polls a greenhouse controller for sensor snapshots and shows them on
// a web dashboard, in the terminal, or on an MQTT broker.
//
// Usage:
//
//	serra serve -c serra.yaml    # Web dashboard (and MQTT, if configured)
//	serra watch -c serra.yaml    # Terminal display
//	serra poll -c serra.yaml     # One cycle, print the rendered values
//	serra validate -c serra.yaml # Validate configuration
//	serra mock --addr :5000      # Simulated greenhouse controller
//	serra version                # Show version info
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jpalmerr/serra/config"
	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var debug bool

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "serra",
	Short: "Greenhouse sensor display poller",
	Long: `serra polls a greenhouse controller for sensor readings and shows them.

Every second it fetches a JSON snapshot from <base_url>/get_data and writes
each reading into its display target, showing N/A when a reading is missing.

Quick start:
  1. Run a simulated controller: serra mock --addr :5000
  2. Run: serra serve
  3. Open http://localhost:8080 in your browser

Example config:
  title: Serra
  source:
    base_url: http://localhost:5000
    interval: 1s
  render:
    mode: truthy`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this serra binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "serra %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every poll cycle")
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger writing to w.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig reads the file named by --config, or returns the defaults when
// the flag is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
