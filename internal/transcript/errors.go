package transcript

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel matched by every NotFoundError.
var ErrNotFound = errors.New("transcript not found")

// NotFoundError reports an operation on an unknown transcript id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transcript %d not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StorageError wraps a fault in the underlying store.
// It is fatal for the operation that hit it, never for the process.
type StorageError struct {
	Op  string // operation that failed, e.g. "add" or "mark synced"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TransferFault is a simulated transfer failure for a single transcript.
// It is recorded as part of a pass result and never surfaced to callers of
// a sync pass.
type TransferFault struct {
	ID     int64
	Reason string
}

func (e *TransferFault) Error() string {
	return fmt.Sprintf("transfer of transcript %d failed: %s", e.ID, e.Reason)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsTransferFault reports whether err is (or wraps) a TransferFault.
func IsTransferFault(err error) bool {
	var tf *TransferFault
	return errors.As(err, &tf)
}
