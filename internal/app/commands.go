package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/TheEleventhAvatar/pocket/internal/store"
	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// recoverCommand turns a panic in a command into an INTERNAL CommandError.
func (a *App) recoverCommand(op string, errp *error) {
	if r := recover(); r != nil {
		a.logger.Error("command panicked", "command", op, "panic", r)
		*errp = &CommandError{Code: CodeInternal, Message: fmt.Sprintf("%s: %v", op, r)}
	}
}

// AddTranscript records a new unsynced transcript.
// Blank content is rejected with INVALID_ARGUMENT.
func (a *App) AddTranscript(ctx context.Context, content string) (t transcript.Transcript, err error) {
	defer a.recoverCommand("add_transcript", &err)

	if strings.TrimSpace(content) == "" {
		return transcript.Transcript{}, invalidArgument("transcript content is empty")
	}

	t, err = a.state.Store.Add(ctx, content)
	if err != nil {
		return transcript.Transcript{}, commandError("add_transcript", err)
	}
	a.logger.Debug("transcript added", "transcript_id", t.ID)
	return t, nil
}

// GetTranscripts returns every transcript, most recent first.
func (a *App) GetTranscripts(ctx context.Context) (ts []transcript.Transcript, err error) {
	defer a.recoverCommand("get_transcripts", &err)

	ts, err = a.state.Store.List(ctx)
	if err != nil {
		return nil, commandError("get_transcripts", err)
	}
	return ts, nil
}

// MarkSynced marks one transcript synced by hand. Marking an already synced
// transcript succeeds and changes nothing.
func (a *App) MarkSynced(ctx context.Context, id int64) (err error) {
	defer a.recoverCommand("mark_synced", &err)

	if id <= 0 {
		return invalidArgument("transcript id must be positive, got %d", id)
	}
	changed, err := a.state.Store.MarkSynced(ctx, id, a.now().UTC())
	if err != nil {
		return commandError("mark_synced", err)
	}
	a.logger.Debug("transcript marked synced", "transcript_id", id, "changed", changed)
	return nil
}

// SimulateSync runs one reconciliation pass now, alongside any scheduled one.
func (a *App) SimulateSync(ctx context.Context) (r transcript.SyncResult, err error) {
	defer a.recoverCommand("simulate_sync", &err)

	r, err = a.engine.RunOnce(ctx)
	if err != nil {
		return transcript.SyncResult{}, commandError("simulate_sync", err)
	}
	return r, nil
}

// GetDeviceStatus returns a copy of the device status.
func (a *App) GetDeviceStatus() transcript.DeviceStatus {
	return a.state.Link.Get()
}

// GetUnsyncedCount returns the number of transcripts awaiting delivery.
func (a *App) GetUnsyncedCount(ctx context.Context) (n int, err error) {
	defer a.recoverCommand("get_unsynced_count", &err)

	n, err = a.state.Store.CountUnsynced(ctx)
	if err != nil {
		return 0, commandError("get_unsynced_count", err)
	}
	return n, nil
}

// ToggleDeviceConnection flips the link and returns the new value.
func (a *App) ToggleDeviceConnection() bool {
	connected := a.state.Link.Toggle()
	a.logger.Info("device connection toggled", "connected", connected)
	return connected
}

// RecentPasses returns up to limit recorded passes, newest first.
// A zero limit means store.DefaultHistoryLimit.
func (a *App) RecentPasses(ctx context.Context, limit int) (ps []transcript.SyncResult, err error) {
	defer a.recoverCommand("recent_passes", &err)

	if limit < 0 {
		return nil, invalidArgument("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = store.DefaultHistoryLimit
	}
	ps, err = a.state.Store.RecentPasses(ctx, limit)
	if err != nil {
		return nil, commandError("recent_passes", err)
	}
	return ps, nil
}
