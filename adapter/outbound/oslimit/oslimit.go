// Package oslimit recognizes the errors an OS returns when a process has
// exhausted its file-watch resources.
package oslimit

import (
	"errors"
	"os"

	"github.com/ajkula/GoNotify/domain/model"
)

// Translate maps a registration error for path onto the watcher error
// taxonomy. Unknown errors are returned wrapped as backend failures.
func Translate(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsWatchLimit(err):
		return model.NewWatchError(op, path, model.ErrWatchLimitReached)
	case errors.Is(err, os.ErrNotExist):
		return model.NewWatchError(op, path, model.ErrPathNotFound)
	default:
		return model.BackendFailure(path, err)
	}
}
