// Package treewatcher is a Backend on github.com/syncthing/notify. notify
// handles recursion natively (path/...), and on Linux exposes the inotify
// event record, which carries the rename cookie that ties IN_MOVED_FROM to
// IN_MOVED_TO.
package treewatcher

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/syncthing/notify"

	"github.com/ajkula/GoNotify/adapter/outbound/emitter"
	"github.com/ajkula/GoNotify/adapter/outbound/oslimit"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const Name = "notify"

// notify does not block on sending to a watch channel, so it must be
// buffered. A full channel means events were dropped.
const defaultBuffer = 500

type watch struct {
	root   string
	mode   model.RecursiveMode
	events chan notify.EventInfo
	stop   chan struct{}
	done   chan struct{}
}

type TreeWatcher struct {
	emitter *emitter.Emitter
	logger  outbound.Logger
	buffer  int

	watches map[string]*watch
	mu      sync.Mutex

	closeOnce sync.Once
}

var _ outbound.Backend = (*TreeWatcher)(nil)

// Factory returns a BackendFactory building TreeWatcher instances.
func Factory(logger outbound.Logger) outbound.BackendFactory {
	return func(sink chan<- model.RawEvent) (outbound.Backend, error) {
		return NewTreeWatcher(sink, logger, defaultBuffer), nil
	}
}

func NewTreeWatcher(sink chan<- model.RawEvent, logger outbound.Logger, buffer int) *TreeWatcher {
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &TreeWatcher{
		emitter: emitter.New(sink),
		logger:  logger,
		buffer:  buffer,
		watches: make(map[string]*watch),
	}
}

func (tw *TreeWatcher) Name() string { return Name }

func (tw *TreeWatcher) Watch(path string, mode model.RecursiveMode) error {
	if tw.emitter.Context().Err() != nil {
		return model.ErrChannelClosed
	}

	info, err := os.Stat(path)
	if err != nil {
		return oslimit.Translate("watch", path, err)
	}

	tw.mu.Lock()
	existing, exists := tw.watches[path]
	if exists && existing.mode == mode {
		tw.mu.Unlock()
		return nil
	}
	delete(tw.watches, path)
	tw.mu.Unlock()

	if exists {
		tw.stopWatch(existing)
	}

	target := path
	if mode.IsRecursive() && info.IsDir() {
		target = filepath.Join(path, "...")
	}

	w := &watch{
		root:   path,
		mode:   mode,
		events: make(chan notify.EventInfo, tw.buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if err := notify.Watch(target, w.events, eventMask...); err != nil {
		notify.Stop(w.events)
		if oslimit.IsWatchLimit(err) {
			tw.logger.Error("OS watch limit reached, increase fs.inotify.max_user_watches", "path", path)
		}
		return oslimit.Translate("watch", path, err)
	}

	tw.mu.Lock()
	tw.watches[path] = w
	tw.mu.Unlock()

	go tw.watchLoop(w)
	return nil
}

func (tw *TreeWatcher) Unwatch(path string) error {
	tw.mu.Lock()
	w, exists := tw.watches[path]
	delete(tw.watches, path)
	tw.mu.Unlock()

	if !exists {
		return model.NewWatchError("unwatch", path, model.ErrWatchNotFound)
	}
	tw.stopWatch(w)
	return nil
}

// Configure accepts nothing.
func (tw *TreeWatcher) Configure(model.Config) (bool, error) {
	return false, nil
}

func (tw *TreeWatcher) WatchedPaths() []string {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	paths := make([]string, 0, len(tw.watches))
	for path := range tw.watches {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (tw *TreeWatcher) Close() error {
	tw.closeOnce.Do(func() {
		tw.emitter.Stop()

		tw.mu.Lock()
		watches := tw.watches
		tw.watches = make(map[string]*watch)
		tw.mu.Unlock()

		for _, w := range watches {
			tw.stopWatch(w)
		}
		tw.emitter.Close()
	})
	return nil
}

func (tw *TreeWatcher) stopWatch(w *watch) {
	notify.Stop(w.events)
	close(w.stop)
	<-w.done
}

func (tw *TreeWatcher) watchLoop(w *watch) {
	defer close(w.done)
	ctx := tw.emitter.Context()

	for {
		// detect channel overflow
		if len(w.events) == cap(w.events) {
		drain:
			for {
				select {
				case <-w.events:
				default:
					break drain
				}
			}
			tw.logger.Warn("Event overflow, requesting rescan", "root", w.root)
			tw.emitter.Rescan(w.root)
		}

		select {
		case ei := <-w.events:
			raw, ok := convert(ei)
			if !ok {
				continue
			}
			tw.emitter.Send(raw)
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
