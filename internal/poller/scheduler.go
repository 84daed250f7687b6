package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// resultBuffer bounds how many finished fetches can wait for the consumer.
const resultBuffer = 16

// Result holds the outcome of one fetch.
type Result struct {
	// Seq numbers fetches in the order they were started, from 1.
	Seq uint64

	// URL is the URL that was fetched.
	URL string

	// Body is the raw response body.
	Body []byte

	// StatusCode is the HTTP status code, zero on transport failure.
	StatusCode int

	// Latency is the time taken by the request.
	Latency time.Duration

	// StartedAt is when the fetch was dispatched.
	StartedAt time.Time

	// CheckedAt is when the response (or failure) was received.
	CheckedAt time.Time

	// Error contains the transport error, if any.
	Error error
}

// Target describes what the scheduler fetches.
type Target struct {
	// URL is the snapshot endpoint.
	URL string

	// Timeout bounds each request. Zero means no per-request timeout.
	Timeout time.Duration
}

// Scheduler fetches a single target periodically.
//
// The scheduler fetches immediately on start and then on every tick of a
// fixed-interval ticker. In single-flight mode (the default) a tick that
// fires while the previous fetch is still running is skipped. In overlap
// mode every tick starts a new fetch regardless, and results are emitted in
// completion order, so an older response may be delivered after a newer one.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	target   Target
	interval time.Duration
	overlap  bool
	client   *Client
	results  chan Result
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup // polling loop
	cycles   sync.WaitGroup // in-flight fetches

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	seq      atomic.Uint64
	inFlight atomic.Int32
	skipped  atomic.Uint64
}

// NewScheduler creates a new [Scheduler].
//
// Parameters:
//   - target: URL and per-request timeout to fetch
//   - interval: time between ticks
//   - overlap: allow a new fetch while previous ones are still running
//   - logger: logger for skipped ticks
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(target Target, interval time.Duration, overlap bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		target:   target,
		interval: interval,
		overlap:  overlap,
		client:   NewClient(),
		results:  make(chan Result, resultBuffer),
		logger:   logger,
	}
}

// Results returns a receive-only channel that emits [Result] values.
//
// The channel is closed once the scheduler has stopped and every in-flight
// fetch has finished.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// InFlight returns the number of fetches currently running.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Skipped returns how many ticks were dropped because a fetch was in flight.
func (s *Scheduler) Skipped() uint64 {
	return s.skipped.Load()
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking. The scheduler fetches immediately, then once per
// interval until [Scheduler.Stop] is called or ctx is cancelled.
//
// If ctx is nil, context.Background() is used. Start is idempotent; calls
// after the first, or after Stop, are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	pollCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })
		defer s.cycles.Wait()

		s.dispatch(pollCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				s.dispatch(pollCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the loop and all in-flight fetches
// to finish. The results channel is closed when Stop returns.
//
// Stop is idempotent. Calling Stop before Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.client != nil {
		s.client.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// dispatch starts one fetch unless single-flight mode says to skip.
// Only the loop goroutine calls dispatch, which keeps cycles.Add ordered
// before the deferred cycles.Wait.
func (s *Scheduler) dispatch(ctx context.Context) {
	if s.overlap {
		s.inFlight.Add(1)
	} else if !s.inFlight.CompareAndSwap(0, 1) {
		s.skipped.Add(1)
		s.logger.Debug("poll skipped", "reason", "previous cycle in flight", "url", s.target.URL)
		return
	}

	seq := s.seq.Add(1)
	startedAt := time.Now()

	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer s.inFlight.Add(-1)

		resp := s.client.Fetch(ctx, s.target.URL, s.target.Timeout)
		result := Result{
			Seq:        seq,
			URL:        s.target.URL,
			Body:       resp.Body,
			StatusCode: resp.StatusCode,
			Latency:    resp.Latency,
			StartedAt:  startedAt,
			CheckedAt:  time.Now(),
			Error:      resp.Error,
		}

		select {
		case s.results <- result:
		case <-ctx.Done():
		}
	}()
}
