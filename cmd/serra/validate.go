package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jpalmerr/serra/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a serra configuration file without polling.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  serra validate -c serra.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mode := cfg.Render.Mode
	if mode == "" {
		mode = "truthy"
	}
	timeout := "none"
	if cfg.Source.Timeout != 0 {
		timeout = cfg.Source.Timeout.Duration().String()
	}
	mqtt := "disabled"
	if cfg.MQTT.Enabled() {
		mqtt = fmt.Sprintf("%s (%s/<target>)", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
	}
	perDay := int64(24 * time.Hour / cfg.Source.Interval.Duration())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Snapshot URL:  %s%s\n", cfg.Source.BaseURL, cfg.Source.Path)
	fmt.Fprintf(out, "  Interval:      %s (%s requests/day)\n", cfg.Source.Interval.Duration(), humanize.Comma(perDay))
	fmt.Fprintf(out, "  Timeout:       %s\n", timeout)
	fmt.Fprintf(out, "  Overlap:       %t\n", cfg.Source.Overlap)
	fmt.Fprintf(out, "  Render mode:   %s\n", mode)
	fmt.Fprintf(out, "  Targets:       %d\n", len(config.Targets(cfg)))
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "  MQTT:          %s\n", mqtt)

	return nil
}
