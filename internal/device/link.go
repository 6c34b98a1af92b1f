// Package device holds the connectivity state of the simulated remote device.
//
// A Link is created once at startup (disconnected, never synced) and shared
// by the command path and the reconciliation scheduler. Every operation is a
// single critical section under one mutex; the lock is never held while a
// transfer is in progress.
package device

import (
	"sync"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// Link is the DeviceStatus holder.
type Link struct {
	mu     sync.Mutex
	status transcript.DeviceStatus
}

// NewLink returns a disconnected link with no recorded sync.
func NewLink() *Link {
	return &Link{}
}

// Get returns a copy of the current status.
func (l *Link) Get() transcript.DeviceStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status.Clone()
}

// Connected reports the current connected flag.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status.Connected
}

// Toggle flips the connected flag and returns the new value.
// Concurrent toggles are linearized by the lock; last write wins.
func (l *Link) Toggle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Connected = !l.status.Connected
	return l.status.Connected
}

// RecordSyncCompletion sets LastSyncAt. Only the sync engine calls this.
func (l *Link) RecordSyncCompletion(at time.Time) {
	at = at.UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.LastSyncAt = &at
}
