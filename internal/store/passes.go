package store

import (
	"context"
	"errors"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// DefaultHistoryLimit bounds RecentPasses when the caller passes limit <= 0.
const DefaultHistoryLimit = 20

// RecordPass appends a completed reconciliation pass to the history.
// Uses ON CONFLICT(pass_id) DO NOTHING so recording the same pass twice is
// harmless. Skipped passes are not history and are rejected.
func (s *Store) RecordPass(ctx context.Context, r transcript.SyncResult) error {
	if r.PassID == "" {
		return storageErr("record pass", errors.New("pass id is required"))
	}
	if r.IsSkipped() {
		return storageErr("record pass", errors.New("skipped passes are not recorded"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	if r.Cancelled {
		cancelled = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_passes
		(pass_id, synced_count, failed_count, cancelled, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pass_id) DO NOTHING
	`,
		r.PassID,
		r.SyncedCount,
		r.FailedCount,
		cancelled,
		r.StartedAt.UTC().UnixNano(),
		r.FinishedAt.UTC().UnixNano(),
	)
	if err != nil {
		return storageErr("record pass", err)
	}
	return nil
}

// RecentPasses returns up to limit recorded passes, most recent first.
func (s *Store) RecentPasses(ctx context.Context, limit int) ([]transcript.SyncResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT pass_id, synced_count, failed_count, cancelled, started_at, finished_at
		FROM sync_passes
		ORDER BY finished_at DESC, pass_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storageErr("recent passes", err)
	}
	defer rows.Close()

	passes := []transcript.SyncResult{}
	for rows.Next() {
		var (
			r                   transcript.SyncResult
			cancelled           int
			startedAt, finished int64
		)
		if err := rows.Scan(&r.PassID, &r.SyncedCount, &r.FailedCount, &cancelled, &startedAt, &finished); err != nil {
			return nil, storageErr("recent passes", err)
		}
		r.Status = transcript.PassCompleted
		r.Cancelled = cancelled != 0
		r.StartedAt = fromNanos(startedAt)
		r.FinishedAt = fromNanos(finished)
		passes = append(passes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent passes", err)
	}
	return passes, nil
}
