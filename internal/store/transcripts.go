package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

const transcriptColumns = `id, content, digest, created_at, sync_state, synced_at`

// Add records a new transcript with a fresh id and created_at, Unsynced.
//
// The insert and the read-back of the assigned id happen in one transaction
// under the write lock, so no reader ever observes a half-built record.
func (s *Store) Add(ctx context.Context, content string) (transcript.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := transcript.Transcript{
		Content:   content,
		Digest:    transcript.Digest(content),
		CreatedAt: s.now().UTC(),
		SyncState: transcript.Unsynced,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transcript.Transcript{}, storageErr("add", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transcripts (content, digest, created_at, sync_state)
		VALUES (?, ?, ?, ?)
	`, t.Content, t.Digest, t.CreatedAt.UnixNano(), string(t.SyncState))
	if err != nil {
		return transcript.Transcript{}, storageErr("add", err)
	}

	t.ID, err = res.LastInsertId()
	if err != nil {
		return transcript.Transcript{}, storageErr("add: last insert id", err)
	}

	if err := tx.Commit(); err != nil {
		return transcript.Transcript{}, storageErr("add: commit", err)
	}

	// Round-trip through the stored precision so callers see exactly what
	// List will return later.
	t.CreatedAt = fromNanos(t.CreatedAt.UnixNano())
	return t, nil
}

// Get returns a single transcript by id.
// Returns a NotFoundError if the id is unknown.
func (s *Store) Get(ctx context.Context, id int64) (transcript.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+transcriptColumns+`
		FROM transcripts
		WHERE id = ?
	`, id)

	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return transcript.Transcript{}, &transcript.NotFoundError{ID: id}
	}
	if err != nil {
		return transcript.Transcript{}, storageErr("get", err)
	}
	return t, nil
}

// List returns every transcript, most recent first.
// Ties on created_at are broken by id so the order is total.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) List(ctx context.Context) ([]transcript.Transcript, error) {
	return s.query(ctx, "list", `
		SELECT `+transcriptColumns+`
		FROM transcripts
		ORDER BY created_at DESC, id DESC
	`)
}

// ListUnsynced returns the Unsynced transcripts, oldest first.
// This is the delivery order of a reconciliation pass.
func (s *Store) ListUnsynced(ctx context.Context) ([]transcript.Transcript, error) {
	return s.query(ctx, "list unsynced", `
		SELECT `+transcriptColumns+`
		FROM transcripts
		WHERE sync_state = 'unsynced'
		ORDER BY created_at ASC, id ASC
	`)
}

// MarkSynced moves a transcript to Synced.
//
// Idempotent: marking an already-synced transcript succeeds and changes
// nothing. The returned bool reports whether this call performed the
// transition, which lets concurrent passes count each record exactly once.
// Returns a NotFoundError if the id is unknown.
func (s *Store) MarkSynced(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE transcripts
		SET sync_state = 'synced', synced_at = ?
		WHERE id = ? AND sync_state = 'unsynced'
	`, at.UTC().UnixNano(), id)
	if err != nil {
		return false, storageErr("mark synced", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("mark synced: rows affected", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either already synced or unknown.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM transcripts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &transcript.NotFoundError{ID: id}
	}
	if err != nil {
		return false, storageErr("mark synced: lookup", err)
	}
	return false, nil
}

// CountUnsynced returns the number of Unsynced transcripts.
// The count is a single statement under the read lock, so it never sees a
// concurrent Add or MarkSynced half-applied.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transcripts WHERE sync_state = 'unsynced'
	`).Scan(&n)
	if err != nil {
		return 0, storageErr("count unsynced", err)
	}
	return n, nil
}

// Count returns the total number of transcripts.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, op, q string, args ...any) ([]transcript.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var out []transcript.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}

	// Return empty slice instead of nil
	if out == nil {
		out = []transcript.Transcript{}
	}

	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscript(r rowScanner) (transcript.Transcript, error) {
	var (
		t         transcript.Transcript
		createdAt int64
		state     string
		syncedAt  sql.NullInt64
	)
	if err := r.Scan(&t.ID, &t.Content, &t.Digest, &createdAt, &state, &syncedAt); err != nil {
		return transcript.Transcript{}, err
	}

	t.CreatedAt = fromNanos(createdAt)
	t.SyncState = transcript.SyncState(state)
	if syncedAt.Valid {
		at := fromNanos(syncedAt.Int64)
		t.SyncedAt = &at
	}
	return t, nil
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func storageErr(op string, err error) error {
	return &transcript.StorageError{Op: op, Err: err}
}
