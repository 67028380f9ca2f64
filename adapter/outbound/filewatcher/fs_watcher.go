package filewatcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/GoNotify/adapter/outbound/emitter"
	"github.com/ajkula/GoNotify/adapter/outbound/oslimit"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

// Name identifies this backend in events and configuration.
const Name = "fsnotify"

type watchRoot struct {
	path string
	mode model.RecursiveMode
	dirs map[string]struct{}
}

// FsWatcher is a Backend on top of fsnotify. fsnotify only watches single
// directories, so recursive roots are expanded here and directories created
// later are added as they appear.
type FsWatcher struct {
	watcher *fsnotify.Watcher
	emitter *emitter.Emitter
	logger  outbound.Logger

	roots map[string]*watchRoot
	// refs counts how many roots hold a registration on a directory
	refs map[string]int
	mu   sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

var _ outbound.Backend = (*FsWatcher)(nil)

// Factory returns a BackendFactory building FsWatcher instances.
func Factory(logger outbound.Logger) outbound.BackendFactory {
	return func(sink chan<- model.RawEvent) (outbound.Backend, error) {
		return NewFSWatcher(sink, logger)
	}
}

func NewFSWatcher(sink chan<- model.RawEvent, logger outbound.Logger) (*FsWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, oslimit.Translate("init", "", fmt.Errorf("failed to create fsnotify watcher: %w", err))
	}
	if logger == nil {
		logger = outbound.NopLogger{}
	}

	fw := &FsWatcher{
		watcher: fsWatcher,
		emitter: emitter.New(sink),
		logger:  logger,
		roots:   make(map[string]*watchRoot),
		refs:    make(map[string]int),
		closed:  make(chan struct{}),
	}

	go fw.processEvents()

	return fw, nil
}

func (fw *FsWatcher) Name() string { return Name }

func (fw *FsWatcher) Watch(path string, mode model.RecursiveMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return oslimit.Translate("watch", path, err)
	}

	fw.mu.Lock()
	root, exists := fw.roots[path]
	if !exists {
		root = &watchRoot{path: path, dirs: make(map[string]struct{})}
	}
	root.mode = mode

	if info.IsDir() && mode.IsRecursive() {
		err = fw.addTree(root, path)
	} else {
		err = fw.addDir(root, path)
	}
	if err != nil {
		if !exists {
			fw.releaseRoot(root)
		}
		fw.mu.Unlock()
		return oslimit.Translate("watch", path, err)
	}
	fw.roots[path] = root
	fw.mu.Unlock()

	// the walk is not atomic: anything created during it may be missed
	if info.IsDir() && mode.IsRecursive() {
		fw.emitter.Rescan(path)
	}
	return nil
}

func (fw *FsWatcher) Unwatch(path string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	root, exists := fw.roots[path]
	if !exists {
		return model.NewWatchError("unwatch", path, model.ErrWatchNotFound)
	}
	fw.releaseRoot(root)
	delete(fw.roots, path)
	return nil
}

// Configure accepts nothing: fsnotify has no tunables that map onto the
// option set.
func (fw *FsWatcher) Configure(model.Config) (bool, error) {
	return false, nil
}

func (fw *FsWatcher) WatchedPaths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	paths := make([]string, 0, len(fw.roots))
	for path := range fw.roots {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Close stops the event loop and closes the sink.
func (fw *FsWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		fw.emitter.Stop()
		if cerr := fw.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close fsnotify watcher: %w", cerr)
		}
		<-fw.closed
		fw.emitter.Close()
	})
	return err
}

// addDir must be called with fw.mu held.
func (fw *FsWatcher) addDir(root *watchRoot, dir string) error {
	if _, ok := root.dirs[dir]; ok {
		return nil
	}
	if fw.refs[dir] == 0 {
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
	}
	fw.refs[dir]++
	root.dirs[dir] = struct{}{}
	return nil
}

// addTree must be called with fw.mu held.
func (fw *FsWatcher) addTree(root *watchRoot, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// entries vanishing mid-walk are not an error
			if errors.Is(err, fs.ErrNotExist) && path != dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fw.addDir(root, path)
	})
}

// releaseRoot must be called with fw.mu held.
func (fw *FsWatcher) releaseRoot(root *watchRoot) {
	for dir := range root.dirs {
		fw.dropDir(root, dir)
	}
}

func (fw *FsWatcher) dropDir(root *watchRoot, dir string) {
	delete(root.dirs, dir)
	fw.refs[dir]--
	if fw.refs[dir] > 0 {
		return
	}
	delete(fw.refs, dir)
	// the kernel may already have dropped it
	if err := fw.watcher.Remove(dir); err != nil {
		fw.logger.Debug("Failed to remove fsnotify watch", "path", dir, "error", err)
	}
}

func (fw *FsWatcher) processEvents() {
	defer close(fw.closed)
	ctx := fw.emitter.Context()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				fw.failIfRunning()
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				fw.failIfRunning()
				return
			}
			fw.handleError(err)
		}
	}
}

func (fw *FsWatcher) failIfRunning() {
	if fw.emitter.Context().Err() == nil {
		fw.emitter.Fail("", model.ErrBackendFailure)
	}
}

func (fw *FsWatcher) handleEvent(event fsnotify.Event) {
	op := convertOp(event.Op)
	if op == 0 {
		return
	}

	raw := model.RawEvent{Path: event.Name, Op: op}
	if event.Has(fsnotify.Rename) {
		raw.Side = model.SideFrom
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Lstat(event.Name); err == nil {
			raw.Entry = entryType(info.Mode())
			if info.IsDir() {
				fw.followNewDir(event.Name)
			}
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		raw.Entry = fw.forgetDir(event.Name)
	}

	fw.emitter.Send(raw)
}

func (fw *FsWatcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		fw.logger.Warn("fsnotify queue overflow, requesting rescan")
		for _, root := range fw.WatchedPaths() {
			fw.emitter.Rescan(root)
		}
		return
	}
	fw.logger.Warn("fsnotify error", "error", err)
	fw.emitter.Send(model.RawEvent{Err: model.BackendFailure("", err)})
}

// followNewDir registers a directory created under a recursive root.
func (fw *FsWatcher) followNewDir(dir string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, root := range fw.roots {
		if !root.mode.IsRecursive() || !inTree(root.path, dir) {
			continue
		}
		if err := fw.addTree(root, dir); err != nil {
			fw.logger.Warn("Failed to follow new directory", "path", dir, "error", err)
			fw.emitter.Send(model.RawEvent{Path: dir, Err: oslimit.Translate("watch", dir, err)})
		}
	}
}

// forgetDir drops registrations for a directory that was removed or moved
// away and reports whether path was a known directory.
func (fw *FsWatcher) forgetDir(path string) model.EntryType {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	entry := model.EntryUnknown
	for _, root := range fw.roots {
		for dir := range root.dirs {
			if !inTree(path, dir) {
				continue
			}
			if dir == path {
				entry = model.EntryDir
			}
			// a root is kept so that Unwatch still finds it
			if dir != root.path {
				fw.dropDir(root, dir)
			}
		}
	}
	return entry
}

func convertOp(op fsnotify.Op) model.Op {
	var out model.Op
	if op.Has(fsnotify.Create) {
		out |= model.OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= model.OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= model.OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= model.OpRename
	}
	if op.Has(fsnotify.Chmod) {
		out |= model.OpMetadata
	}
	return out
}

func entryType(mode fs.FileMode) model.EntryType {
	switch {
	case mode.IsDir():
		return model.EntryDir
	case mode.IsRegular():
		return model.EntryFile
	default:
		return model.EntryOther
	}
}

func inTree(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
