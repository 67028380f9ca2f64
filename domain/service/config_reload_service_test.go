package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoNotify/domain/model"
)

type chanWatcher struct {
	events  chan model.Result
	watched []string
	closed  bool
	mu      sync.Mutex
}

func newChanWatcher() *chanWatcher {
	return &chanWatcher{events: make(chan model.Result, 16)}
}

func (w *chanWatcher) Watch(path string, mode model.RecursiveMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched = append(w.watched, path)
	return nil
}

func (w *chanWatcher) Unwatch(string) error                 { return nil }
func (w *chanWatcher) Configure(model.Config) (bool, error) { return false, nil }
func (w *chanWatcher) Events() <-chan model.Result          { return w.events }

func (w *chanWatcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

func (w *chanWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

type reloadRecorder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *reloadRecorder) reload(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.err
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestConfigReloadService_WatchFile(t *testing.T) {
	w := newChanWatcher()
	s := NewConfigReloadService(w, (&reloadRecorder{}).reload, nil)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")

	require.NoError(t, s.WatchFile(a))
	require.NoError(t, s.WatchFile(b))
	require.NoError(t, s.WatchFile(a))

	assert.Equal(t, []string{dir}, w.WatchedPaths())
	assert.Equal(t, []string{a, b}, s.WatchedFiles())
}

func TestConfigReloadService_Reload(t *testing.T) {
	w := newChanWatcher()
	rec := &reloadRecorder{}
	s := NewConfigReloadService(w, rec.reload, nil)
	s.SetMinInterval(0)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, s.WatchFile(file))
	require.NoError(t, s.Start())
	assert.True(t, s.IsWatching())

	w.events <- model.Result{Event: model.NewEvent(model.KindModifyData(), filepath.Join(dir, "other.yaml"))}
	w.events <- model.Result{Event: model.NewEvent(model.KindAccess(model.AccessOpen), file)}
	w.events <- model.Result{Err: errors.New("boom")}
	w.events <- model.Result{Event: model.NewEvent(model.KindModifyData(), file)}
	w.events <- model.Result{Event: model.NewEvent(model.KindRename(model.RenameBoth), file+".tmp", file)}
	w.events <- model.Result{Event: model.NewEvent(model.KindRemove(model.ObjectFile), file)}

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsWatching())
	assert.True(t, w.closed)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{file, file}, rec.paths)
}

func TestConfigReloadService_RateLimit(t *testing.T) {
	w := newChanWatcher()
	rec := &reloadRecorder{err: errors.New("invalid config")}
	s := NewConfigReloadService(w, rec.reload, nil)
	s.SetMinInterval(time.Hour)

	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, s.WatchFile(file))
	require.NoError(t, s.Start())
	defer s.Cleanup()

	for i := 0; i < 3; i++ {
		w.events <- model.Result{Event: model.NewEvent(model.KindModifyData(), file)}
	}

	require.Eventually(t, func() bool { return len(w.events) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}
