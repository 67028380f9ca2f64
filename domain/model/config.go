package model

import "time"

// RecursiveMode tells a backend whether to watch a directory tree or only a
// directory and its immediate children.
type RecursiveMode uint8

const (
	NonRecursive RecursiveMode = iota
	Recursive
)

func (m RecursiveMode) String() string {
	if m == Recursive {
		return "recursive"
	}
	return "non-recursive"
}

// IsRecursive reports whether m is Recursive.
func (m RecursiveMode) IsRecursive() bool {
	return m == Recursive
}

// Config is a runtime option understood by the watcher and/or its backend.
// The set is closed: only the types declared in this file implement it.
type Config interface {
	configOption()
	String() string
}

// PreciseEvents enables detailed EventKind classification instead of Any.
type PreciseEvents bool

// NoticeEvents emits an immediate notice before the debounced event.
type NoticeEvents bool

// OngoingEvents overrides the debounce interval.
type OngoingEvents time.Duration

func (PreciseEvents) configOption() {}
func (NoticeEvents) configOption()  {}
func (OngoingEvents) configOption() {}

func (c PreciseEvents) String() string {
	if c {
		return "PreciseEvents(true)"
	}
	return "PreciseEvents(false)"
}

func (c NoticeEvents) String() string {
	if c {
		return "NoticeEvents(true)"
	}
	return "NoticeEvents(false)"
}

func (c OngoingEvents) String() string {
	return "OngoingEvents(" + time.Duration(c).String() + ")"
}

// Duration returns the option value as a time.Duration.
func (c OngoingEvents) Duration() time.Duration {
	return time.Duration(c)
}
