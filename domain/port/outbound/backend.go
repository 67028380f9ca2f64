package outbound

import (
	"github.com/ajkula/GoNotify/domain/model"
)

// Backend is the contract every platform watcher implements. A backend owns
// the sink it was created with and closes it from Close, after any final
// terminal raw event has been sent.
type Backend interface {
	// starts monitoring path; fails with model.ErrPathNotFound when path does
	// not exist, or model.ErrWatchLimitReached when the OS quota is exhausted
	Watch(path string, mode model.RecursiveMode) error

	// stops monitoring path; fails with model.ErrWatchNotFound when path was
	// never registered
	Unwatch(path string) error

	// applies a runtime option; false means the backend does not support it
	Configure(option model.Config) (bool, error)

	// returns the registered roots
	WatchedPaths() []string

	// short identifier used as event source, e.g. "fsnotify"
	Name() string

	// stops the producer and closes the sink
	Close() error
}

// BackendFactory creates a Backend that delivers raw events to sink.
type BackendFactory func(sink chan<- model.RawEvent) (Backend, error)
