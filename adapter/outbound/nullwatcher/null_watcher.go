// Package nullwatcher is a Backend that records registrations and never
// produces events. Useful for tests and for disabling watching by config.
package nullwatcher

import (
	"os"
	"sort"
	"sync"

	"github.com/ajkula/GoNotify/adapter/outbound/oslimit"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const Name = "null"

type NullWatcher struct {
	sink    chan<- model.RawEvent
	watched map[string]model.RecursiveMode
	mu      sync.Mutex
	once    sync.Once
}

var _ outbound.Backend = (*NullWatcher)(nil)

func Factory() outbound.BackendFactory {
	return func(sink chan<- model.RawEvent) (outbound.Backend, error) {
		return New(sink), nil
	}
}

func New(sink chan<- model.RawEvent) *NullWatcher {
	return &NullWatcher{sink: sink, watched: make(map[string]model.RecursiveMode)}
}

func (n *NullWatcher) Name() string { return Name }

func (n *NullWatcher) Watch(path string, mode model.RecursiveMode) error {
	if _, err := os.Stat(path); err != nil {
		return oslimit.Translate("watch", path, err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.watched[path] = mode
	return nil
}

func (n *NullWatcher) Unwatch(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.watched[path]; !ok {
		return model.NewWatchError("unwatch", path, model.ErrWatchNotFound)
	}
	delete(n.watched, path)
	return nil
}

func (n *NullWatcher) Configure(model.Config) (bool, error) {
	return false, nil
}

func (n *NullWatcher) WatchedPaths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	paths := make([]string, 0, len(n.watched))
	for p := range n.watched {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (n *NullWatcher) Close() error {
	n.once.Do(func() { close(n.sink) })
	return nil
}
