package outbound

// PathFilter decides which raw event paths are dropped before debouncing.
type PathFilter interface {
	// returns true when events for path must be ignored
	Ignore(path string) bool
}
