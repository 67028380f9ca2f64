package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

// Mock implementations
type fakeBackend struct {
	sink         chan<- model.RawEvent
	watched      map[string]model.RecursiveMode
	accepts      map[string]bool
	configureErr error
	closeOnce    sync.Once
	mu           sync.Mutex
}

func newFakeBackend() (*fakeBackend, outbound.BackendFactory) {
	fb := &fakeBackend{
		watched: make(map[string]model.RecursiveMode),
		accepts: make(map[string]bool),
	}
	return fb, func(sink chan<- model.RawEvent) (outbound.Backend, error) {
		fb.sink = sink
		return fb, nil
	}
}

func (f *fakeBackend) Watch(path string, mode model.RecursiveMode) error {
	if _, err := os.Stat(path); err != nil {
		return model.NewWatchError("watch", path, model.ErrPathNotFound)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched[path] = mode
	return nil
}

func (f *fakeBackend) Unwatch(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watched[path]; !ok {
		return model.NewWatchError("unwatch", path, model.ErrWatchNotFound)
	}
	delete(f.watched, path)
	return nil
}

func (f *fakeBackend) Configure(option model.Config) (bool, error) {
	if f.configureErr != nil {
		return false, f.configureErr
	}
	return f.accepts[option.String()], nil
}

func (f *fakeBackend) WatchedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.watched))
	for p := range f.watched {
		paths = append(paths, p)
	}
	return paths
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Close() error {
	f.closeOnce.Do(func() { close(f.sink) })
	return nil
}

func (f *fakeBackend) emit(raw model.RawEvent) {
	f.sink <- raw
}

type suffixFilter string

func (s suffixFilter) Ignore(path string) bool {
	return strings.HasSuffix(path, string(s))
}

func receive(t *testing.T, ch <-chan model.Result) model.Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return model.Result{}
	}
}

func TestWatcherService_WatchAndUnwatch(t *testing.T) {
	fb, factory := newFakeBackend()
	w, err := NewWatcherService(factory)
	require.NoError(t, err)
	defer w.Close()

	dir := t.TempDir()

	require.NoError(t, w.Watch(dir, model.Recursive))
	assert.Equal(t, model.Recursive, fb.watched[dir])
	assert.Equal(t, []string{dir}, w.WatchedPaths())

	err = w.Watch(filepath.Join(dir, "missing"), model.NonRecursive)
	assert.ErrorIs(t, err, model.ErrPathNotFound)

	require.NoError(t, w.Unwatch(dir))
	assert.ErrorIs(t, w.Unwatch(dir), model.ErrWatchNotFound)
}

func TestWatcherService_DebouncedDelivery(t *testing.T) {
	fb, factory := newFakeBackend()
	w, err := NewWatcherService(factory, WithDebounce(10*time.Millisecond), WithPreciseEvents(true))
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		fb.emit(model.RawEvent{Path: "/data/log", Op: model.OpWrite})
	}

	r := receive(t, w.Events())
	require.NoError(t, r.Err)
	assert.Equal(t, "/data/log", r.Event.Path())
	assert.True(t, r.Event.Kind.Equal(model.KindModifyData()))
	assert.Equal(t, "fake", r.Event.Attrs.Source)
}

func TestWatcherService_Configure(t *testing.T) {
	t.Run("engine options are accepted", func(t *testing.T) {
		_, factory := newFakeBackend()
		w, err := NewWatcherService(factory)
		require.NoError(t, err)
		defer w.Close()

		for _, opt := range []model.Config{
			model.PreciseEvents(true),
			model.NoticeEvents(true),
			model.OngoingEvents(50 * time.Millisecond),
		} {
			accepted, err := w.Configure(opt)
			require.NoError(t, err)
			assert.True(t, accepted, opt.String())
		}

		accepted, err := w.Configure(model.OngoingEvents(-1))
		require.NoError(t, err)
		assert.False(t, accepted)
	})

	t.Run("rejection is not an error", func(t *testing.T) {
		_, factory := newFakeBackend()
		w, err := NewWatcherService(factory, WithImmediate())
		require.NoError(t, err)
		defer w.Close()

		accepted, err := w.Configure(model.NoticeEvents(true))
		require.NoError(t, err)
		assert.False(t, accepted)

		accepted, err = w.Configure(model.PreciseEvents(true))
		require.NoError(t, err)
		assert.True(t, accepted)
	})

	t.Run("backend may accept", func(t *testing.T) {
		fb, factory := newFakeBackend()
		fb.accepts[model.OngoingEvents(time.Second).String()] = true
		w, err := NewWatcherService(factory, WithImmediate())
		require.NoError(t, err)
		defer w.Close()

		accepted, err := w.Configure(model.OngoingEvents(time.Second))
		require.NoError(t, err)
		assert.True(t, accepted)
	})

	t.Run("backend failure is an error", func(t *testing.T) {
		fb, factory := newFakeBackend()
		fb.configureErr = errors.New("ioctl failed")
		w, err := NewWatcherService(factory)
		require.NoError(t, err)
		defer w.Close()

		accepted, err := w.Configure(model.PreciseEvents(true))
		assert.Error(t, err)
		assert.False(t, accepted)

		_, err = w.Configure(model.OngoingEvents(time.Second))
		assert.Error(t, err)
		assert.Equal(t, DefaultDebounceInterval, w.debouncer.Interval(), "engine left unchanged")
	})
}

func TestWatcherService_ImmediateMode(t *testing.T) {
	fb, factory := newFakeBackend()
	w, err := NewWatcherService(factory, WithImmediate(), WithPreciseEvents(true))
	require.NoError(t, err)
	defer w.Close()

	fb.emit(model.RawEvent{Path: "/a", Op: model.OpRename, Cookie: 5, Side: model.SideFrom})
	fb.emit(model.RawEvent{Path: "/a", Op: model.OpWrite})

	r := receive(t, w.Events())
	require.NoError(t, r.Err)
	assert.True(t, r.Event.Kind.Equal(model.KindRename(model.RenameFrom)))
	assert.Equal(t, uint32(5), r.Event.Attrs.Tracker)

	r = receive(t, w.Events())
	assert.True(t, r.Event.Kind.Equal(model.KindModifyData()))

	fb.emit(model.RawEvent{Path: "/a", Err: errors.New("revoked"), Fatal: true})
	r = receive(t, w.Events())
	assert.ErrorIs(t, r.Err, model.ErrBackendFailure)
}

func TestWatcherService_Filter(t *testing.T) {
	fb, factory := newFakeBackend()
	w, err := NewWatcherService(factory,
		WithImmediate(),
		WithFilter(suffixFilter(".tmp")))
	require.NoError(t, err)
	defer w.Close()

	fb.emit(model.RawEvent{Path: "/a/file.tmp", Op: model.OpCreate})
	fb.emit(model.RawEvent{Path: "/a/file.txt", Op: model.OpCreate})

	r := receive(t, w.Events())
	assert.Equal(t, "/a/file.txt", r.Event.Path())
}

func TestWatcherService_CloseClosesEvents(t *testing.T) {
	fb, factory := newFakeBackend()
	w, err := NewWatcherService(factory, WithDebounce(time.Hour))
	require.NoError(t, err)

	fb.emit(model.RawEvent{Path: "/pending", Op: model.OpWrite})
	require.NoError(t, w.Close())

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok, "events channel must be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}

	assert.ErrorIs(t, w.Watch(t.TempDir(), model.NonRecursive), model.ErrChannelClosed)
	_, err = w.Configure(model.PreciseEvents(true))
	assert.ErrorIs(t, err, model.ErrChannelClosed)
	assert.NoError(t, w.Close())
}

func TestWatcherService_BackendClosesSink(t *testing.T) {
	fb, factory := newFakeBackend()
	w, err := NewWatcherService(factory, WithDebounce(time.Hour), WithPreciseEvents(true))
	require.NoError(t, err)
	defer w.Close()

	fb.emit(model.RawEvent{Path: "/pending", Op: model.OpCreate})
	fb.Close()

	r := receive(t, w.Events())
	require.NoError(t, r.Err)
	assert.True(t, r.Event.Kind.IsCreate(), "pending state is drained")

	r = receive(t, w.Events())
	assert.ErrorIs(t, r.Err, model.ErrChannelClosed)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestWatcherService_SharedSink(t *testing.T) {
	sink := make(chan model.Result, 16)

	fb1, factory1 := newFakeBackend()
	fb2, factory2 := newFakeBackend()

	w1, err := NewWatcherService(factory1, WithImmediate(), WithSink(sink))
	require.NoError(t, err)
	w2, err := NewWatcherService(factory2, WithImmediate(), WithSink(sink))
	require.NoError(t, err)

	assert.Nil(t, w1.Events())

	fb1.emit(model.RawEvent{Path: "/one", Op: model.OpCreate})
	fb2.emit(model.RawEvent{Path: "/two", Op: model.OpCreate})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[receive(t, sink).Event.Path()] = true
	}
	assert.Equal(t, map[string]bool{"/one": true, "/two": true}, seen)

	require.NoError(t, w1.Close())
	require.NoError(t, w2.Close())

	assert.NotPanics(t, func() { sink <- model.Result{} }, "caller-owned sink stays open")
}
