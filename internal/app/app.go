// Package app wires the store, device link, engine and scheduler together
// and exposes the command surface used by the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/config"
	"github.com/TheEleventhAvatar/pocket/internal/device"
	"github.com/TheEleventhAvatar/pocket/internal/engine"
	"github.com/TheEleventhAvatar/pocket/internal/scheduler"
	"github.com/TheEleventhAvatar/pocket/internal/store"
	"github.com/TheEleventhAvatar/pocket/internal/transport"
)

// State is the shared state every command and the scheduler operate on.
// Store and Link are each independently locked.
type State struct {
	Store *store.Store
	Link  *device.Link
}

// App is the composition root and the command facade.
//
// Thread-safety model: every command is safe from any goroutine and may run
// concurrently with scheduled passes.
type App struct {
	cfg       config.Config
	state     State
	device    *transport.Simulated
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	status    *scheduler.Broadcaster
	logger    *slog.Logger
	now       func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Option configures an App.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
	ids    engine.PassIDGenerator
	random func() float64
}

// WithClock overrides the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPassIDGenerator overrides pass id generation.
func WithPassIDGenerator(g engine.PassIDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithRandom overrides the randomness behind the simulated device's fault rate.
func WithRandom(fn func() float64) Option {
	return func(o *options) { o.random = fn }
}

// New validates cfg, opens the store and builds every component.
// The scheduler is not started; call Start.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	st, err := store.Open(cfg.Database, store.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Database, err)
	}

	simOpts := []transport.SimOption{
		transport.WithLatency(cfg.Sync.TransferLatency),
		transport.WithFaultRate(cfg.Sync.FaultRate),
	}
	if o.random != nil {
		simOpts = append(simOpts, transport.WithRandom(o.random))
	}

	a := &App{
		cfg:    cfg,
		state:  State{Store: st, Link: device.NewLink()},
		device: transport.NewSimulated(simOpts...),
		status: scheduler.NewBroadcaster(o.logger),
		logger: o.logger,
		now:    o.now,
	}

	engineOpts := []engine.Option{engine.WithClock(o.now), engine.WithLogger(o.logger)}
	if o.ids != nil {
		engineOpts = append(engineOpts, engine.WithPassIDGenerator(o.ids))
	}
	a.engine = engine.New(st, a.state.Link, a.device, engineOpts...)

	a.scheduler = scheduler.New(a.engine,
		scheduler.WithInterval(cfg.Sync.Interval),
		scheduler.WithObserver(a.status),
		scheduler.WithDevice(a.state.Link),
		scheduler.WithCounter(st),
		scheduler.WithLogger(o.logger),
		scheduler.WithClock(o.now),
	)

	o.logger.Debug("app initialized",
		"database", cfg.Database,
		"interval", cfg.Sync.Interval,
		"transfer_latency", cfg.Sync.TransferLatency,
		"fault_rate", cfg.Sync.FaultRate,
	)
	return a, nil
}

// Start starts the background scheduler.
func (a *App) Start(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

// Close stops the scheduler and closes the store. Safe to call twice.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.scheduler.Stop()
		a.closeErr = a.state.Store.Close()
	})
	return a.closeErr
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// State returns the shared store and link.
func (a *App) State() State {
	return a.state
}

// Device returns the simulated device, for fault injection.
func (a *App) Device() *transport.Simulated {
	return a.device
}

// Scheduler returns the background scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Status returns the broadcaster that receives every scheduled pass.
func (a *App) Status() *scheduler.Broadcaster {
	return a.status
}
