package photo

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures recorded in a RunResult.
type ErrorKind string

const (
	KindUnreadableFile                ErrorKind = "UnreadableFile"
	KindHashFailure                   ErrorKind = "HashFailure"
	KindDestinationConflictUnresolved ErrorKind = "DestinationConflictUnresolved"
	KindFilesystemMoveFailure         ErrorKind = "FilesystemMoveFailure"
	KindCancellationRequested         ErrorKind = "CancellationRequested"
)

// Sentinel errors, one per kind, for errors.Is checks.
var (
	ErrUnreadable      = errors.New("unreadable file")
	ErrHash            = errors.New("hash failure")
	ErrConflict        = errors.New("destination conflict unresolved")
	ErrMove            = errors.New("filesystem move failure")
	ErrCancelled       = errors.New("cancellation requested")
	ErrUnsupported     = errors.New("unsupported image format")
	ErrDestinationBusy = errors.New("destination is locked by another run")
)

var kindSentinels = map[ErrorKind]error{
	KindUnreadableFile:                ErrUnreadable,
	KindHashFailure:                   ErrHash,
	KindDestinationConflictUnresolved: ErrConflict,
	KindFilesystemMoveFailure:         ErrMove,
	KindCancellationRequested:         ErrCancelled,
}

// Error is a per-file or per-action failure. It never aborts a run on its own.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

// NewError creates an Error of the given kind for path.
func NewError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind, so callers can write
// errors.Is(err, photo.ErrUnreadable).
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the ErrorKind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
