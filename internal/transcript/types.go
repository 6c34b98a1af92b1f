package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SyncState records whether a transcript has been delivered to the device.
type SyncState string

const (
	// Unsynced marks a transcript that has not reached the device yet.
	Unsynced SyncState = "unsynced"
	// Synced marks a transcript the device has acknowledged.
	Synced SyncState = "synced"
)

// Valid reports whether s is one of the known states.
func (s SyncState) Valid() bool {
	return s == Unsynced || s == Synced
}

// Transcript is a single recorded item.
//
// ID, Content, Digest and CreatedAt never change after creation. SyncState
// only ever moves from Unsynced to Synced, and SyncedAt is set alongside it.
type Transcript struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	Digest    string     `json:"digest"`
	CreatedAt time.Time  `json:"created_at"`
	SyncState SyncState  `json:"sync_state"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

// IsSynced reports whether the transcript has reached the device.
func (t Transcript) IsSynced() bool {
	return t.SyncState == Synced
}

// Clone returns a deep copy so callers never share the SyncedAt pointer.
func (t Transcript) Clone() Transcript {
	if t.SyncedAt != nil {
		at := *t.SyncedAt
		t.SyncedAt = &at
	}
	return t
}

func (t Transcript) String() string {
	return fmt.Sprintf("#%d [%s] %s", t.ID, t.SyncState, t.Content)
}

// Digest returns the hex SHA-256 of the NFC-normalized content.
//
// Normalization makes visually identical payloads (composed vs decomposed
// accents) hash the same, so the device can compare what it received with
// what was recorded regardless of how the text was typed.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(content)))
	return hex.EncodeToString(sum[:])
}

// DeviceStatus is a point-in-time view of the simulated device link.
type DeviceStatus struct {
	Connected  bool       `json:"connected"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// Clone returns a deep copy of the status.
func (d DeviceStatus) Clone() DeviceStatus {
	if d.LastSyncAt != nil {
		at := *d.LastSyncAt
		d.LastSyncAt = &at
	}
	return d
}

// PassStatus is the outcome class of a reconciliation pass.
type PassStatus string

const (
	// PassCompleted means the batch was processed (possibly with failures).
	PassCompleted PassStatus = "completed"
	// PassSkipped means the pass did nothing; see SyncResult.Reason.
	PassSkipped PassStatus = "skipped"
)

// SkipReason explains why a pass was skipped.
type SkipReason string

// NotConnected is the only reason a pass is skipped today.
const NotConnected SkipReason = "not_connected"

// SyncResult describes one reconciliation pass.
type SyncResult struct {
	PassID      string     `json:"pass_id,omitempty"`
	Status      PassStatus `json:"status"`
	Reason      SkipReason `json:"reason,omitempty"`
	SyncedCount int        `json:"synced_count"`
	FailedCount int        `json:"failed_count"`
	Cancelled   bool       `json:"cancelled,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}

// Skipped builds the result of a pass that did not run.
func Skipped(reason SkipReason, at time.Time) SyncResult {
	return SyncResult{
		Status:     PassSkipped,
		Reason:     reason,
		StartedAt:  at,
		FinishedAt: at,
	}
}

// IsSkipped reports whether the pass was skipped.
func (r SyncResult) IsSkipped() bool {
	return r.Status == PassSkipped
}

// Duration returns how long the pass took.
func (r SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r SyncResult) String() string {
	if r.IsSkipped() {
		return fmt.Sprintf("skipped (%s)", r.Reason)
	}
	s := fmt.Sprintf("completed: synced=%d failed=%d", r.SyncedCount, r.FailedCount)
	if r.Cancelled {
		s += " (cancelled)"
	}
	return s
}
