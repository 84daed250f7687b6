package serra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/serra/dashboard"
	"github.com/jpalmerr/serra/internal/server"
	"github.com/jpalmerr/serra/internal/store"
)

const defaultPort = 8080

// Dashboard serves the greenhouse page over HTTP.
//
// The page holds one display element per target. A [Poller] renders into it
// through [Dashboard.Surface] and every write is streamed to open browsers.
//
//	d, err := serra.NewDashboard(serra.WithPort(8080))
//	if err != nil {
//	    return err
//	}
//	p, err := serra.New(serra.WithSurface(d.Surface()))
//	if err != nil {
//	    return err
//	}
//	return d.Start(ctx, p) // blocks until ctx is cancelled
type Dashboard struct {
	title   string
	port    int
	targets []string
	logger  *slog.Logger
	page    *store.MemoryStore
}

type dashboardConfig struct {
	title   string
	port    int
	targets []string
	logger  *slog.Logger
}

// DashboardOption configures a [Dashboard].
type DashboardOption func(*dashboardConfig) error

// WithPort sets the HTTP port. Default is 8080.
func WithPort(port int) DashboardOption {
	return func(c *dashboardConfig) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		c.port = port
		return nil
	}
}

// WithTitle sets the page title. Empty keeps the default "Serra".
func WithTitle(title string) DashboardOption {
	return func(c *dashboardConfig) error {
		c.title = title
		return nil
	}
}

// WithTargets sets the element IDs present on the page. Default is
// [DefaultTargets]. Fields mapped to IDs not listed here are skipped.
func WithTargets(ids ...string) DashboardOption {
	return func(c *dashboardConfig) error {
		if len(ids) == 0 {
			return errors.New("at least one target is required")
		}
		seen := make(map[string]bool, len(ids))
		for i, id := range ids {
			if id == "" {
				return fmt.Errorf("targets[%d]: id cannot be empty", i)
			}
			if seen[id] {
				return fmt.Errorf("targets[%d]: duplicate id %q", i, id)
			}
			seen[id] = true
		}
		c.targets = append([]string(nil), ids...)
		return nil
	}
}

// WithDashboardLogger sets the logger for server events.
func WithDashboardLogger(logger *slog.Logger) DashboardOption {
	return func(c *dashboardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewDashboard creates a [Dashboard] with the given options.
func NewDashboard(opts ...DashboardOption) (*Dashboard, error) {
	cfg := &dashboardConfig{
		port:    defaultPort,
		targets: DefaultTargets(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dashboard{
		title:   cfg.title,
		port:    cfg.port,
		targets: cfg.targets,
		logger:  logger,
		page:    store.NewMemoryStore(cfg.targets...),
	}, nil
}

// Surface returns the page model as a render surface.
func (d *Dashboard) Surface() Surface {
	return d.page
}

// Port returns the configured HTTP port.
func (d *Dashboard) Port() int {
	return d.port
}

// Targets returns a copy of the element IDs on the page.
func (d *Dashboard) Targets() []string {
	return append([]string(nil), d.targets...)
}

// Start serves the dashboard and runs p until ctx is cancelled.
//
// p should render into [Dashboard.Surface], possibly combined with other
// surfaces via [MultiSurface]. Returns nil on graceful shutdown and an
// error if the HTTP server cannot bind.
func (d *Dashboard) Start(ctx context.Context, p *Poller) error {
	if p == nil {
		return errors.New("poller cannot be nil")
	}

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	httpServer := server.NewServer(d.page, d.port, dashboard.Assets, d.title, d.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	d.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", d.port))

	p.Start(ctx)

	<-ctx.Done()
	p.Stop()
	d.logger.Info("dashboard stopped")
	return nil
}
