package model

import (
	"errors"
	"fmt"
)

var (
	ErrPathNotFound      = errors.New("path not found")
	ErrWatchNotFound     = errors.New("watch not found")
	ErrWatchLimitReached = errors.New("OS watch limit reached")
	ErrBackendFailure    = errors.New("backend failure")
	ErrChannelClosed     = errors.New("channel closed")
	ErrUnknownBackend    = errors.New("unknown backend")
)

// WatchError adds the operation and path to one of the sentinel errors.
type WatchError struct {
	Op   string
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// NewWatchError wraps err with the failing operation and path.
func NewWatchError(op, path string, err error) error {
	return &WatchError{Op: op, Path: path, Err: err}
}

// BackendFailure wraps cause as a backend failure on path, so that both
// errors.Is(err, ErrBackendFailure) and errors.Is(err, cause) hold.
func BackendFailure(path string, cause error) error {
	if cause == nil {
		cause = ErrBackendFailure
	}
	if errors.Is(cause, ErrBackendFailure) {
		return NewWatchError("backend", path, cause)
	}
	return NewWatchError("backend", path, fmt.Errorf("%w: %w", ErrBackendFailure, cause))
}
