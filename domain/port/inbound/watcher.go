package inbound

import (
	"github.com/ajkula/GoNotify/domain/model"
)

// Watcher is the public entry point: register paths, receive classified
// events, reconfigure at runtime.
type Watcher interface {
	// Watch begins monitoring path. Call-site errors: model.ErrPathNotFound,
	// model.ErrWatchLimitReached, model.ErrChannelClosed.
	Watch(path string, mode model.RecursiveMode) error

	// Unwatch stops monitoring path; model.ErrWatchNotFound if unknown.
	Unwatch(path string) error

	// Configure returns false when neither the watcher nor its backend
	// supports the option. Errors are reserved for operational failures.
	Configure(option model.Config) (bool, error)

	// Events returns the outbound stream. It is closed by Close unless the
	// watcher was built on a caller-owned sink.
	Events() <-chan model.Result

	WatchedPaths() []string

	Close() error
}

// Subscription is one consumer of a broadcast event stream.
type Subscription interface {
	ID() string
	C() <-chan model.Result
}

// EventBroadcaster fans a single Result stream out to many subscribers.
type EventBroadcaster interface {
	Subscribe() Subscription
	Unsubscribe(id string)
	SubscriberCount() int
}
