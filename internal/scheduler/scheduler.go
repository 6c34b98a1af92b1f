package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// DefaultInterval is the time between scheduled passes.
const DefaultInterval = 3 * time.Second

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Runner performs one reconciliation pass.
type Runner interface {
	RunOnce(ctx context.Context) (transcript.SyncResult, error)
}

// DeviceReader reads the current device status.
type DeviceReader interface {
	Get() transcript.DeviceStatus
}

// UnsyncedCounter reports how many transcripts still await delivery.
type UnsyncedCounter interface {
	CountUnsynced(ctx context.Context) (int, error)
}

// Observer receives a Status after every attempted pass.
// Publish is called from the scheduler goroutine and must not block.
type Observer interface {
	Publish(Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Status)

// Publish calls f(s).
func (f ObserverFunc) Publish(s Status) { f(s) }

// Status is the snapshot published after a pass.
type Status struct {
	Result   transcript.SyncResult   `json:"result"`
	Device   transcript.DeviceStatus `json:"device"`
	Unsynced int                     `json:"unsynced"`
	Err      error                   `json:"-"`
	At       time.Time               `json:"at"`
}

// Stats counts scheduler activity since creation.
type Stats struct {
	Passes  int64 // passes that ran to completion (including skipped-by-link)
	Skipped int64 // ticks dropped because a pass was in flight
	Errors  int64 // passes that returned an error or panicked
}

// Scheduler triggers passes on a fixed interval.
//
// Thread-safety model:
//   - Start()/Stop(): safe from any goroutine; Stop is idempotent
//   - TryRun(): safe from any goroutine, at most one pass at a time
//   - Stats(): safe from any goroutine
type Scheduler struct {
	runner   Runner
	device   DeviceReader
	counter  UnsyncedCounter
	observer Observer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
	passes  atomic.Int64
	skipped atomic.Int64
	errs    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithObserver sets the observer that receives every Status.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDevice adds the device status to published snapshots.
func WithDevice(d DeviceReader) Option {
	return func(s *Scheduler) {
		s.device = d
	}
}

// WithCounter adds the unsynced count to published snapshots.
func WithCounter(c UnsyncedCounter) Option {
	return func(s *Scheduler) {
		s.counter = c
	}
}

// WithClock overrides the time source for Status.At.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a stopped Scheduler around r.
func New(r Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:   r,
		observer: ObserverFunc(func(Status) {}),
		interval: DefaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start launches the tick loop. The loop ends when ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels the loop and waits for it to exit, including any pass in
// flight. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TryRun(ctx)
		}
	}
}

// TryRun runs one pass unless another TryRun is already running it.
// Returns the published Status and true, or a zero Status and false when
// the slot was taken.
func (s *Scheduler) TryRun(ctx context.Context) (Status, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("tick skipped, pass in flight")
		return Status{}, false
	}
	defer s.running.Store(false)

	result, err := s.runGuarded(ctx)
	if err != nil {
		s.errs.Add(1)
		s.logger.Error("scheduled sync pass failed", "error", err)
	} else {
		s.passes.Add(1)
	}

	st := s.snapshot(ctx, result, err)
	s.observer.Publish(st)
	return st, true
}

// runGuarded converts a panic in the runner into an error.
func (s *Scheduler) runGuarded(ctx context.Context) (result transcript.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
	}()
	return s.runner.RunOnce(ctx)
}

func (s *Scheduler) snapshot(ctx context.Context, result transcript.SyncResult, err error) Status {
	st := Status{Result: result, Err: err, At: s.now().UTC()}
	if s.device != nil {
		st.Device = s.device.Get()
	}
	if s.counter != nil {
		n, cerr := s.counter.CountUnsynced(context.WithoutCancel(ctx))
		if cerr != nil {
			s.logger.Warn("failed to count unsynced transcripts", "error", cerr)
			st.Unsynced = -1
		} else {
			st.Unsynced = n
		}
	}
	return st
}

// Running reports whether a pass is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stats returns a snapshot of the activity counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Passes:  s.passes.Load(),
		Skipped: s.skipped.Load(),
		Errors:  s.errs.Load(),
	}
}
