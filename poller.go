package serra

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/serra/internal/poller"
)

const (
	// DefaultPath is where the greenhouse server publishes its snapshot.
	DefaultPath = "/get_data"

	// DefaultBaseURL is the development server address.
	DefaultBaseURL = "http://localhost:5000"

	defaultInterval = time.Second

	// fetchErrorMessage is logged for every failed cycle.
	fetchErrorMessage = "Error fetching data:"
)

// CycleResult describes one poll cycle.
type CycleResult struct {
	// Seq numbers cycles in the order they were started, from 1.
	Seq uint64

	// URL is the snapshot URL that was requested.
	URL string

	// StatusCode is the HTTP status code, zero on transport failure.
	StatusCode int

	// Latency is the request duration.
	Latency time.Duration

	// StartedAt is when the request was dispatched.
	StartedAt time.Time

	// CheckedAt is when the response was received.
	CheckedAt time.Time

	// Snapshot is the decoded payload. Zero when Error is set.
	Snapshot Snapshot

	// Updated lists the targets written this cycle, in mapping order.
	Updated []string

	// Skipped lists the targets absent from the surface.
	Skipped []string

	// Error is the transport or decode failure. When set, no target
	// was written.
	Error error
}

// Poller periodically fetches a sensor snapshot and renders it onto a
// [Surface].
//
// A Poller is created with [New] and driven either by [Poller.Start] /
// [Poller.Stop] or one cycle at a time with [Poller.PollOnce].
type Poller struct {
	url       string
	interval  time.Duration
	timeout   time.Duration
	surface   Surface
	mappings  []Mapping
	mode      RenderMode
	overlap   bool
	logger    *slog.Logger
	callbacks []func(CycleResult)
	client    *poller.Client

	onceSeq atomic.Uint64

	mu        sync.Mutex
	scheduler *poller.Scheduler
	wg        sync.WaitGroup
	started   bool
	stopped   bool
}

// New creates a [Poller] with the given options.
//
// A surface is required via [WithSurface]. Defaults:
//   - Base URL: http://localhost:5000
//   - Path: /get_data
//   - Interval: 1 second
//   - Timeout: none
//   - Mappings: [DefaultMappings]
//   - Mode: [ModeTruthy], single-flight
//
// Example:
//
//	p, err := serra.New(
//	    serra.WithBaseURL("http://greenhouse.local:5000"),
//	    serra.WithSurface(display),
//	)
func New(opts ...Option) (*Poller, error) {
	cfg := &pollerConfig{
		baseURL:  DefaultBaseURL,
		path:     DefaultPath,
		interval: defaultInterval,
		mappings: DefaultMappings(),
		mode:     ModeTruthy,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.surface == nil {
		return nil, errors.New("a surface is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		url:       cfg.baseURL + cfg.path,
		interval:  cfg.interval,
		timeout:   cfg.timeout,
		surface:   recoveringSurface{Surface: cfg.surface, logger: logger},
		mappings:  cfg.mappings,
		mode:      cfg.mode,
		overlap:   cfg.overlap,
		logger:    logger,
		callbacks: cfg.cycleCallbacks,
		client:    poller.NewClient(),
	}, nil
}

// URL returns the snapshot URL being polled.
func (p *Poller) URL() string {
	return p.url
}

// Interval returns the time between poll cycles.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Mode returns the configured render mode.
func (p *Poller) Mode() RenderMode {
	return p.mode
}

// Mappings returns a copy of the field-to-target table.
func (p *Poller) Mappings() []Mapping {
	return append([]Mapping(nil), p.mappings...)
}

// Start begins polling in the background and returns immediately.
//
// The first cycle runs right away; later cycles run once per interval until
// [Poller.Stop] is called or ctx is cancelled. Start is idempotent, and a
// no-op after Stop.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.logger.Info("poller starting",
		"url", p.url,
		"interval", p.interval.String(),
		"mode", p.mode.String(),
		"overlap", p.overlap,
	)

	target := poller.Target{URL: p.url, Timeout: p.timeout}
	p.scheduler = poller.NewScheduler(target, p.interval, p.overlap, p.logger)
	p.scheduler.Start(ctx)

	results := p.scheduler.Results()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// render in arrival order; in overlap mode this is where an older
		// snapshot can land after a newer one
		for res := range results {
			p.handle(res)
		}
	}()
}

// Stop halts polling and waits for the in-flight cycle, if any, to be
// rendered or dropped. Stop is idempotent and safe to call before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	scheduler := p.scheduler
	p.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
	p.wg.Wait()
	p.client.Close()
}

// PollOnce runs a single synchronous cycle and returns its outcome.
//
// The returned error is the cycle's Error. Failures are logged exactly as
// in the background loop. PollOnce may be used without Start.
func (p *Poller) PollOnce(ctx context.Context) (CycleResult, error) {
	startedAt := time.Now()
	resp := p.client.Fetch(ctx, p.url, p.timeout)
	result := p.handle(poller.Result{
		Seq:        p.onceSeq.Add(1),
		URL:        p.url,
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		StartedAt:  startedAt,
		CheckedAt:  time.Now(),
		Error:      resp.Error,
	})
	return result, result.Error
}

// handle decodes and renders one fetch result, logs the outcome and runs
// the cycle callbacks.
func (p *Poller) handle(res poller.Result) CycleResult {
	result := CycleResult{
		Seq:        res.Seq,
		URL:        res.URL,
		StatusCode: res.StatusCode,
		Latency:    res.Latency,
		StartedAt:  res.StartedAt,
		CheckedAt:  res.CheckedAt,
		Error:      res.Error,
	}

	if result.Error == nil {
		snap, err := DecodeSnapshot(res.Body)
		if err != nil {
			result.Error = err
		} else {
			applied := Apply(p.surface, snap, p.mappings, p.mode)
			result.Snapshot = snap
			result.Updated = applied.Updated
			result.Skipped = applied.Skipped
		}
	}

	if result.Error != nil {
		p.logger.Error(fetchErrorMessage,
			"error", result.Error.Error(),
			"url", result.URL,
			"seq", result.Seq,
			"status_code", result.StatusCode,
		)
	} else {
		p.logger.Debug("poll completed",
			"seq", result.Seq,
			"latency_ms", result.Latency.Milliseconds(),
			"updated", len(result.Updated),
			"skipped", len(result.Skipped),
		)
	}

	for _, cb := range p.callbacks {
		invokeCallbackSafe(cb, result, p.logger)
	}
	return result
}

// invokeCallbackSafe calls a cycle callback with panic recovery.
func invokeCallbackSafe(cb func(CycleResult), result CycleResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cycle callback panicked",
				"panic", r,
				"seq", result.Seq,
			)
		}
	}()
	cb(result)
}
