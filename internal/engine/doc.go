// Package engine implements pocket's sync engine: one reconciliation pass
// that moves Unsynced transcripts to Synced while the device is connected.
//
// PASS ALGORITHM:
//
//  1. If the device link is disconnected, return Skipped(not_connected) with
//     no side effects.
//  2. Snapshot the Unsynced transcripts, oldest first. Transcripts added
//     while the pass runs wait for the next pass.
//  3. For each transcript: claim it, re-check it is still Unsynced, transfer
//     it (outside every lock), mark it Synced, release the claim.
//  4. A failed transfer leaves the transcript Unsynced and the pass moves on.
//  5. After the batch, record the completion time on the link and append the
//     pass to the store's history.
//
// CONCURRENCY:
//
// RunOnce may run concurrently with itself (the scheduler's pass and a
// manual sync). Two mechanisms keep that safe:
//
//   - Claims: a transcript being delivered by one pass is skipped by the
//     others, so the device never receives it twice.
//   - Changed-only counting: MarkSynced reports whether this call performed
//     the transition, and only those calls count toward SyncedCount.
//
// The engine never holds the store lock and the link lock together; it reads
// a snapshot from each. A toggle racing an in-flight pass may or may not
// affect it, and always affects the next one.
//
// CANCELLATION:
//
// The context is checked between transcripts. A cancelled pass stops early,
// reports Cancelled, and still records its completion.
package engine
