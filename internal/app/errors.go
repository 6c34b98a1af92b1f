package app

import (
	"errors"
	"fmt"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// ErrorCode categorizes command failures.
type ErrorCode string

const (
	// CodeNotFound indicates the referenced transcript does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeStorage indicates the store could not complete the operation.
	CodeStorage ErrorCode = "STORAGE"

	// CodeInvalidArgument indicates the caller passed a bad value.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeInternal indicates an unexpected failure, including recovered panics.
	CodeInternal ErrorCode = "INTERNAL"
)

// CommandError is the only error type returned by App commands.
// It carries a stable Code and a human-readable Message.
type CommandError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CodeOf returns the CommandError code of err, or CodeInternal if err is not
// a CommandError. Returns "" for a nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err is a NOT_FOUND command error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func invalidArgument(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// commandError converts a lower-level error into a CommandError.
func commandError(op string, err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}

	code := CodeInternal
	switch {
	case transcript.IsNotFound(err):
		code = CodeNotFound
	case transcript.IsStorageError(err):
		code = CodeStorage
	}
	return &CommandError{Code: code, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}
