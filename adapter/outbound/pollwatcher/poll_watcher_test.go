package pollwatcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoNotify/domain/model"
)

// an hour-long interval keeps the ticker out of the way; tests call scan
func newTestWatcher(t *testing.T) (*PollWatcher, chan model.RawEvent) {
	t.Helper()
	sink := make(chan model.RawEvent, 64)
	pw := NewPollWatcher(sink, nil, time.Hour)
	t.Cleanup(func() { pw.Close() })
	return pw, sink
}

func drain(sink chan model.RawEvent) map[string]model.RawEvent {
	got := make(map[string]model.RawEvent)
	for {
		select {
		case raw := <-sink:
			got[raw.Path] = raw
		default:
			return got
		}
	}
}

func TestPollWatcher_DetectsChanges(t *testing.T) {
	pw, sink := newTestWatcher(t)
	dir := t.TempDir()

	keep := filepath.Join(dir, "keep.txt")
	gone := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(keep, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(gone, []byte("x"), 0o644))

	require.NoError(t, pw.Watch(dir, model.NonRecursive))
	pw.scan()
	assert.Empty(t, drain(sink), "no changes, no events")

	added := filepath.Join(dir, "added.txt")
	require.NoError(t, os.WriteFile(added, []byte("hello"), 0o644))
	require.NoError(t, os.Remove(gone))
	require.NoError(t, os.WriteFile(keep, []byte("version two"), 0o644))
	require.NoError(t, os.Chtimes(keep, time.Now(), time.Now().Add(time.Minute)))

	pw.scan()
	got := drain(sink)

	require.Contains(t, got, added)
	assert.Equal(t, model.OpCreate, got[added].Op)
	assert.Equal(t, model.EntryFile, got[added].Entry)
	require.NotNil(t, got[added].Size)
	assert.Equal(t, int64(5), *got[added].Size)

	require.Contains(t, got, gone)
	assert.Equal(t, model.OpRemove, got[gone].Op)

	require.Contains(t, got, keep)
	assert.True(t, got[keep].Op.Has(model.OpWrite))
}

func TestPollWatcher_Recursion(t *testing.T) {
	pw, sink := newTestWatcher(t)
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	require.NoError(t, pw.Watch(dir, model.NonRecursive))
	deep := filepath.Join(sub, "deep.txt")
	require.NoError(t, os.WriteFile(deep, nil, 0o644))
	pw.scan()
	assert.NotContains(t, drain(sink), deep)

	require.NoError(t, pw.Watch(dir, model.Recursive))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "deeper.txt"), nil, 0o644))
	pw.scan()
	assert.Contains(t, drain(sink), filepath.Join(sub, "deeper.txt"))
}

func TestPollWatcher_RootRemoved(t *testing.T) {
	pw, sink := newTestWatcher(t)
	dir := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))
	require.NoError(t, pw.Watch(dir, model.NonRecursive))

	require.NoError(t, os.RemoveAll(dir))
	pw.scan()

	got := drain(sink)
	require.Contains(t, got, dir)
	assert.Equal(t, model.OpRemove, got[dir].Op)
	assert.Equal(t, model.EntryDir, got[dir].Entry)
	assert.Contains(t, got, filepath.Join(dir, "f"))
}

func TestPollWatcher_Registration(t *testing.T) {
	pw, _ := newTestWatcher(t)
	dir := t.TempDir()

	assert.ErrorIs(t, pw.Watch(filepath.Join(dir, "missing"), model.NonRecursive), model.ErrPathNotFound)
	require.NoError(t, pw.Watch(dir, model.Recursive))
	assert.Equal(t, []string{dir}, pw.WatchedPaths())
	require.NoError(t, pw.Unwatch(dir))
	assert.ErrorIs(t, pw.Unwatch(dir), model.ErrWatchNotFound)

	accepted, err := pw.Configure(model.OngoingEvents(time.Second))
	assert.NoError(t, err)
	assert.False(t, accepted)
}

func TestPollWatcher_TickerScans(t *testing.T) {
	sink := make(chan model.RawEvent, 8)
	pw := NewPollWatcher(sink, nil, 10*time.Millisecond)
	dir := t.TempDir()
	require.NoError(t, pw.Watch(dir, model.NonRecursive))

	file := filepath.Join(dir, "tick.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	select {
	case raw := <-sink:
		assert.Equal(t, file, raw.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not report the new file")
	}

	require.NoError(t, pw.Close())
	for range sink {
	}
}

func TestDiff_TypeChange(t *testing.T) {
	prev := snapshot{"/p": {entry: model.EntryFile, data: 1}}
	next := snapshot{"/p": {entry: model.EntryDir}}

	changes := diff(prev, next)
	require.Len(t, changes, 1)
	assert.Equal(t, model.OpCreate|model.OpRemove, changes[0].Op)
	assert.Equal(t, model.EntryDir, changes[0].Entry)
}
