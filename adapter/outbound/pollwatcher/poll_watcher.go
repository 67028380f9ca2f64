// Package pollwatcher is the fallback Backend for platforms without a native
// notification API. It snapshots every watched root on an interval and
// reports the difference between consecutive snapshots.
package pollwatcher

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ajkula/GoNotify/adapter/outbound/emitter"
	"github.com/ajkula/GoNotify/adapter/outbound/oslimit"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const (
	Name            = "poll"
	DefaultInterval = time.Second
)

type fingerprint struct {
	entry model.EntryType
	size  int64
	// data covers size and mtime, meta covers the permission bits
	data uint64
	meta uint64
}

type snapshot map[string]fingerprint

type pollRoot struct {
	path  string
	mode  model.RecursiveMode
	state snapshot
}

type PollWatcher struct {
	emitter  *emitter.Emitter
	logger   outbound.Logger
	interval time.Duration

	roots map[string]*pollRoot
	mu    sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

var _ outbound.Backend = (*PollWatcher)(nil)

// Factory returns a BackendFactory building PollWatcher instances.
func Factory(logger outbound.Logger, interval time.Duration) outbound.BackendFactory {
	return func(sink chan<- model.RawEvent) (outbound.Backend, error) {
		return NewPollWatcher(sink, logger, interval), nil
	}
}

func NewPollWatcher(sink chan<- model.RawEvent, logger outbound.Logger, interval time.Duration) *PollWatcher {
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	pw := &PollWatcher{
		emitter:  emitter.New(sink),
		logger:   logger,
		interval: interval,
		roots:    make(map[string]*pollRoot),
		done:     make(chan struct{}),
	}
	go pw.run()
	return pw
}

func (pw *PollWatcher) Name() string { return Name }

func (pw *PollWatcher) Watch(path string, mode model.RecursiveMode) error {
	state, err := take(path, mode)
	if err != nil {
		return oslimit.Translate("watch", path, err)
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.roots[path] = &pollRoot{path: path, mode: mode, state: state}
	return nil
}

func (pw *PollWatcher) Unwatch(path string) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if _, exists := pw.roots[path]; !exists {
		return model.NewWatchError("unwatch", path, model.ErrWatchNotFound)
	}
	delete(pw.roots, path)
	return nil
}

// Configure accepts nothing; the interval is fixed at construction.
func (pw *PollWatcher) Configure(model.Config) (bool, error) {
	return false, nil
}

func (pw *PollWatcher) WatchedPaths() []string {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	paths := make([]string, 0, len(pw.roots))
	for path := range pw.roots {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (pw *PollWatcher) Close() error {
	pw.closeOnce.Do(func() {
		pw.emitter.Stop()
		<-pw.done
		pw.emitter.Close()
	})
	return nil
}

func (pw *PollWatcher) run() {
	defer close(pw.done)
	ctx := pw.emitter.Context()

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pw.scan()
		}
	}
}

// scan diffs every root against its previous snapshot and emits the changes.
func (pw *PollWatcher) scan() {
	pw.mu.Lock()
	roots := make([]*pollRoot, 0, len(pw.roots))
	for _, root := range pw.roots {
		roots = append(roots, root)
	}
	pw.mu.Unlock()

	for _, root := range roots {
		next, err := take(root.path, root.mode)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			pw.logger.Warn("Poll scan failed", "root", root.path, "error", err)
			pw.emitter.Send(model.RawEvent{Path: root.path, Err: model.BackendFailure(root.path, err)})
			continue
		}

		pw.mu.Lock()
		prev := root.state
		root.state = next
		pw.mu.Unlock()

		for _, raw := range diff(prev, next) {
			if !pw.emitter.Send(raw) {
				return
			}
		}
	}
}

// take builds a snapshot of path. A missing root yields an empty snapshot
// together with the not-exist error.
func take(path string, mode model.RecursiveMode) (snapshot, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return snapshot{}, err
	}

	snap := snapshot{path: fingerprintOf(info)}
	if !info.IsDir() {
		return snap, nil
	}

	if !mode.IsRecursive() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return snap, err
		}
		for _, entry := range entries {
			child := filepath.Join(path, entry.Name())
			if info, err := entry.Info(); err == nil {
				snap[child] = fingerprintOf(info)
			}
		}
		return snap, nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p != path {
				return nil
			}
			return err
		}
		if info, err := d.Info(); err == nil {
			snap[p] = fingerprintOf(info)
		}
		return nil
	})
	return snap, err
}

func fingerprintOf(info fs.FileInfo) fingerprint {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(info.Size()))
	binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))

	var mode [4]byte
	binary.LittleEndian.PutUint32(mode[:], uint32(info.Mode()))

	fp := fingerprint{
		entry: model.EntryOther,
		size:  info.Size(),
		data:  xxhash.Sum64(buf[:]),
		meta:  xxhash.Sum64(mode[:]),
	}
	switch {
	case info.IsDir():
		fp.entry = model.EntryDir
		// directory mtime moves with every child change, which is
		// already reported per child
		fp.data = 0
	case info.Mode().IsRegular():
		fp.entry = model.EntryFile
	}
	return fp
}

// diff lists the changes turning prev into next, in path order.
func diff(prev, next snapshot) []model.RawEvent {
	paths := make([]string, 0, len(prev)+len(next))
	for p := range prev {
		paths = append(paths, p)
	}
	for p := range next {
		if _, ok := prev[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var changes []model.RawEvent
	for _, p := range paths {
		old, hadOld := prev[p]
		cur, hasCur := next[p]

		var raw model.RawEvent
		switch {
		case !hadOld:
			raw = model.RawEvent{Path: p, Op: model.OpCreate, Entry: cur.entry}
		case !hasCur:
			raw = model.RawEvent{Path: p, Op: model.OpRemove, Entry: old.entry}
		case old.entry != cur.entry:
			// replaced by a different kind of entry
			raw = model.RawEvent{Path: p, Op: model.OpCreate | model.OpRemove, Entry: cur.entry}
		default:
			if old.data != cur.data {
				raw.Op |= model.OpWrite
			}
			if old.meta != cur.meta {
				raw.Op |= model.OpMetadata
			}
			if raw.Op == 0 {
				continue
			}
			raw.Path, raw.Entry = p, cur.entry
		}

		if hasCur && cur.entry == model.EntryFile {
			size := cur.size
			raw.Size = &size
		}
		changes = append(changes, raw)
	}
	return changes
}
