package serra

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	baseURL        string
	path           string
	interval       time.Duration
	timeout        time.Duration
	surface        Surface
	mappings       []Mapping
	mode           RenderMode
	overlap        bool
	logger         *slog.Logger
	cycleCallbacks []func(CycleResult)
}

// Option configures a [Poller] during construction.
//
// Options return an error if validation fails; [New] stops at the first one.
type Option func(*pollerConfig) error

// WithBaseURL sets the origin that serves the snapshot, e.g.
// "http://greenhouse.local:5000". The snapshot path is appended to it.
//
// Returns an error unless the URL has an http or https scheme and a host.
func WithBaseURL(raw string) Option {
	return func(cfg *pollerConfig) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("base url must include a host")
		}
		cfg.baseURL = strings.TrimRight(raw, "/")
		return nil
	}
}

// WithPath sets the snapshot path. Defaults to [DefaultPath].
func WithPath(path string) Option {
	return func(cfg *pollerConfig) error {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("path must start with '/', got %q", path)
		}
		cfg.path = path
		return nil
	}
}

// WithInterval sets the time between poll cycles. Defaults to one second.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithTimeout bounds each snapshot request. Zero (the default) leaves
// requests unbounded, which in single-flight mode means a hung request
// holds off every later cycle until it finishes.
//
// Returns an error if the duration is negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithSurface sets where rendered text is written. Required.
//
// Use [MultiSurface] to write to several displays at once.
func WithSurface(s Surface) Option {
	return func(cfg *pollerConfig) error {
		if s == nil {
			return errors.New("surface cannot be nil")
		}
		cfg.surface = s
		return nil
	}
}

// WithMappings replaces the field-to-target table. Defaults to
// [DefaultMappings].
func WithMappings(mappings ...Mapping) Option {
	return func(cfg *pollerConfig) error {
		if err := validateMappings(mappings); err != nil {
			return err
		}
		cfg.mappings = append([]Mapping(nil), mappings...)
		return nil
	}
}

// WithRenderMode selects which values fall back to [Fallback].
// Defaults to [ModeTruthy].
func WithRenderMode(mode RenderMode) Option {
	return func(cfg *pollerConfig) error {
		if mode != ModeTruthy && mode != ModePresence {
			return fmt.Errorf("unknown render mode %s", mode)
		}
		cfg.mode = mode
		return nil
	}
}

// WithOverlap lets a new cycle start while earlier ones are still waiting
// for a response. Responses are then rendered in arrival order, so a slow
// older snapshot can overwrite a newer one. Defaults to false, in which
// case ticks that fire during an in-flight cycle are skipped. Overlapping
// requests are not limited in number.
func WithOverlap(overlap bool) Option {
	return func(cfg *pollerConfig) error {
		cfg.overlap = overlap
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithCycleCallback registers a function called after every poll cycle,
// successful or not, with the cycle's [CycleResult].
//
// Callbacks run synchronously on the poller's result goroutine in
// registration order and must not block. Panics are recovered and logged.
// Nil callbacks are ignored.
func WithCycleCallback(cb func(CycleResult)) Option {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.cycleCallbacks = append(cfg.cycleCallbacks, cb)
		return nil
	}
}
