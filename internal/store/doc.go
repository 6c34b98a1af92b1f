// Package store provides SQLite-backed durable storage for pocket transcripts.
//
// The store is the source of truth for:
//   - Transcripts: recorded items with their sync state
//   - Sync passes: an append-only history of completed reconciliation passes
//
// # Invariants
//
//   - Transcript ids are assigned by SQLite AUTOINCREMENT and never reused
//   - content, digest and created_at are immutable (enforced by trigger)
//   - sync_state only moves unsynced -> synced (enforced by trigger and by
//     MarkSynced's conditional UPDATE)
//
// # Ordering
//
//   - List: ORDER BY created_at DESC, id DESC (most recent first)
//   - ListUnsynced: ORDER BY created_at ASC, id ASC (delivery order)
//
// # Locking
//
// One sync.RWMutex per Store. Writers take the write lock, readers the read
// lock, each for a single statement or transaction. Callers receive copies;
// nothing returned aliases store state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Open(MemoryPath) gives an in-memory store with the same semantics, minus
// durability across restarts.
package store
