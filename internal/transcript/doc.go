// Package transcript defines the value types shared by every layer of pocket:
// recorded transcripts, the simulated device status, and the result of a
// reconciliation pass.
//
// All types here are plain values. The store hands out copies, the device
// link hands out copies, and nothing outside the store holds a mutable
// reference to a persisted record.
//
// # Sync State
//
// A transcript starts Unsynced and may move to Synced exactly once. The
// transition is one-way; nothing in pocket ever moves a record back.
//
// # Errors
//
//   - NotFoundError: an operation referenced an unknown transcript id
//   - StorageError: the underlying store failed
//   - TransferFault: a single simulated transfer failed during a pass
//
// Use IsNotFound, IsStorageError and IsTransferFault to classify wrapped
// errors.
package transcript
