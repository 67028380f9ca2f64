//go:build unix

package oslimit

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsWatchLimit reports whether err is inotify's ENOSPC (max_user_watches)
// or a descriptor exhaustion from kqueue-style backends.
func IsWatchLimit(err error) bool {
	return errors.Is(err, unix.ENOSPC) ||
		errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE)
}
