package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
	"github.com/TheEleventhAvatar/pocket/internal/transport"
)

// Store is the part of the transcript store a pass needs.
type Store interface {
	Get(ctx context.Context, id int64) (transcript.Transcript, error)
	ListUnsynced(ctx context.Context) ([]transcript.Transcript, error)
	MarkSynced(ctx context.Context, id int64, at time.Time) (bool, error)
	RecordPass(ctx context.Context, r transcript.SyncResult) error
}

// Link is the part of the device link a pass needs.
type Link interface {
	Connected() bool
	RecordSyncCompletion(at time.Time)
}

// Engine runs reconciliation passes.
//
// Thread-safety model:
//   - RunOnce(): safe from any goroutine, including concurrently with itself
//   - InFlight(): safe from any goroutine
type Engine struct {
	store     Store
	link      Link
	transport transport.Transport
	ids       PassIDGenerator
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	claimed map[int64]string // transcript id -> pass id delivering it
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock overrides the time source for pass and sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPassIDGenerator overrides the pass id generator (default UUIDv7).
func WithPassIDGenerator(g PassIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over the given store, link and transport.
func New(s Store, l Link, t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		link:      l,
		transport: t,
		ids:       UUIDv7Generator{},
		now:       time.Now,
		logger:    slog.Default(),
		claimed:   make(map[int64]string),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RunOnce performs one reconciliation pass.
//
// Returns Skipped(not_connected) without side effects when the link is down.
// Otherwise returns Completed with the number of transcripts this pass moved
// to Synced and the number whose transfer (or mark) failed. Transfer faults
// never surface as an error; the only error is failing to read the snapshot.
// A context that ends before the snapshot gives a Cancelled result with no
// side effects, not an error.
func (e *Engine) RunOnce(ctx context.Context) (transcript.SyncResult, error) {
	started := e.now().UTC()

	if !e.link.Connected() {
		e.logger.Debug("sync pass skipped", "reason", transcript.NotConnected)
		return transcript.Skipped(transcript.NotConnected, started), nil
	}

	if ctx.Err() != nil {
		e.logger.Debug("sync pass cancelled before snapshot")
		return cancelledBeforeStart(started), nil
	}

	passID := e.ids.Generate()
	logger := e.logger.With("pass_id", passID)

	batch, err := e.store.ListUnsynced(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("sync pass cancelled during snapshot", "error", err)
			return cancelledBeforeStart(started), nil
		}
		return transcript.SyncResult{}, fmt.Errorf("sync pass %s: snapshot unsynced: %w", passID, err)
	}

	logger.Debug("sync pass started", "batch", len(batch))

	result := transcript.SyncResult{
		PassID:    passID,
		Status:    transcript.PassCompleted,
		StartedAt: started,
	}

	for _, t := range batch {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		if !e.claim(t.ID, passID) {
			logger.Debug("transcript claimed by another pass", "transcript_id", t.ID)
			continue
		}

		outcome := e.deliver(ctx, logger, t)
		e.release(t.ID)

		switch outcome {
		case outcomeSynced:
			result.SyncedCount++
		case outcomeFailed:
			result.FailedCount++
		case outcomeCancelled:
			result.Cancelled = true
		}
		if result.Cancelled {
			break
		}
	}

	result.FinishedAt = e.now().UTC()
	e.link.RecordSyncCompletion(result.FinishedAt)

	// History is best effort; the pass itself already happened.
	if err := e.store.RecordPass(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("failed to record sync pass", "error", err)
	}

	logger.Info("sync pass completed",
		"synced", result.SyncedCount,
		"failed", result.FailedCount,
		"cancelled", result.Cancelled,
		"duration", result.Duration(),
	)

	return result, nil
}

// cancelledBeforeStart is the result of a pass whose context ended before it
// took its snapshot. Nothing was delivered, so it has no pass id, is not
// recorded in history and leaves LastSyncAt alone.
func cancelledBeforeStart(at time.Time) transcript.SyncResult {
	return transcript.SyncResult{
		Status:     transcript.PassCompleted,
		Cancelled:  true,
		StartedAt:  at,
		FinishedAt: at,
	}
}

// InFlight returns the number of transcripts currently claimed by passes.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.claimed)
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeAlreadySynced
	outcomeFailed
	outcomeCancelled
)

// deliver transfers one transcript and marks it synced.
// No engine, store or link lock is held during the transfer.
func (e *Engine) deliver(ctx context.Context, logger *slog.Logger, t transcript.Transcript) outcome {
	// The snapshot may be stale: another pass can have delivered and released
	// this transcript between our snapshot and our claim.
	current, err := e.store.Get(ctx, t.ID)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeCancelled
		}
		logger.Error("failed to re-read transcript", "transcript_id", t.ID, "error", err)
		return outcomeFailed
	}
	if current.IsSynced() {
		return outcomeAlreadySynced
	}

	if err := e.transport.Transfer(ctx, t); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Debug("transfer interrupted", "transcript_id", t.ID)
			return outcomeCancelled
		}
		logger.Warn("transfer failed", "transcript_id", t.ID, "error", err)
		return outcomeFailed
	}

	// The device has the transcript now; record that even if the caller
	// cancels, otherwise the next pass would deliver it again.
	changed, err := e.store.MarkSynced(context.WithoutCancel(ctx), t.ID, e.now().UTC())
	if err != nil {
		logger.Error("failed to mark transcript synced", "transcript_id", t.ID, "error", err)
		return outcomeFailed
	}
	if !changed {
		logger.Debug("transcript already synced", "transcript_id", t.ID)
		return outcomeAlreadySynced
	}
	return outcomeSynced
}

// claim reserves id for passID. Returns false if another pass holds it.
func (e *Engine) claim(id int64, passID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, taken := e.claimed[id]; taken {
		return false
	}
	e.claimed[id] = passID
	return true
}

func (e *Engine) release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.claimed, id)
}
