package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jpalmerr/serra"
	"github.com/jpalmerr/serra/config"
	"github.com/spf13/cobra"
)

// pollCmd runs a single cycle and prints the result.
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll cycle and print the rendered values",
	Long: `Fetch one snapshot, render it and print each target with its text.

Exit codes:
  0 - Snapshot fetched and rendered
  1 - Fetch or decode failed (error details printed to stderr)

Example:
  serra poll
  serra poll -c serra.yaml`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().StringP("config", "c", "", "path to config file")
}

// tableSurface records writes so they can be printed in target order.
type tableSurface struct {
	ids   []string
	known map[string]bool
	text  map[string]string
}

func newTableSurface(ids []string) *tableSurface {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &tableSurface{ids: ids, known: known, text: make(map[string]string, len(ids))}
}

func (t *tableSurface) HasTarget(id string) bool {
	return t.known[id]
}

func (t *tableSurface) SetText(id, text string) {
	if t.known[id] {
		t.text[id] = text
	}
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	table := newTableSurface(config.Targets(cfg))

	opts, err := config.BuildPollerOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build poller options: %w", err)
	}
	p, err := serra.New(append(opts,
		serra.WithSurface(table),
		serra.WithLogger(newLogger(os.Stderr)),
	)...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	defer p.Stop()

	result, err := p.PollOnce(context.Background())
	if err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TARGET\tTEXT\n")
	for _, id := range table.ids {
		text, ok := table.text[id]
		if !ok {
			text = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", id, text)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nfetched %s in %dms (HTTP %d)\n",
		result.URL, result.Latency.Milliseconds(), result.StatusCode)

	return nil
}
