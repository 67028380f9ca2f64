//go:build !unix

package oslimit

// IsWatchLimit always reports false where the platform has no per-user
// watch quota.
func IsWatchLimit(err error) bool {
	return false
}
