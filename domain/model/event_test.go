package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "any", KindAny().String())
	assert.Equal(t, "create(folder)", KindCreate(ObjectFolder).String())
	assert.Equal(t, "modify(data)", KindModifyData().String())
	assert.Equal(t, "modify(name(both))", KindRename(RenameBoth).String())
	assert.Equal(t, "access(any)", KindAccess(AccessAny).String())
}

func TestEventKind_Equal(t *testing.T) {
	noisy := EventKind{Type: TypeCreate, Create: ObjectFile, Remove: ObjectFolder}
	assert.True(t, noisy.Equal(KindCreate(ObjectFile)))
	assert.False(t, KindRename(RenameFrom).Equal(KindRename(RenameTo)))
	assert.True(t, KindRename(RenameAny).IsRename())
	assert.False(t, KindModifyData().IsRename())
}

func TestEventKind_JSON(t *testing.T) {
	data, err := json.Marshal(KindRename(RenameBoth))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"modify","modify":{"kind":"name","mode":"both"}}`, string(data))

	data, err = json.Marshal(KindCreate(ObjectFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"create","create":"file"}`, string(data))

	var kind EventKind
	require.NoError(t, json.Unmarshal([]byte(`{"type":"remove","remove":"folder"}`), &kind))
	assert.True(t, kind.Equal(KindRemove(ObjectFolder)))

	require.NoError(t, json.Unmarshal([]byte(`{"type":"modify"}`), &kind))
	assert.True(t, kind.Equal(EventKind{Type: TypeModify}))

	assert.Error(t, json.Unmarshal([]byte(`{"type":"explode"}`), &kind))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"modify","modify":{"kind":"name","mode":"sideways"}}`), &kind))
}

func TestResult_JSON(t *testing.T) {
	ev := NewEvent(KindRename(RenameBoth), "/a", "/b")
	ev.Attrs.Tracker = 3
	ev.Attrs.Flag = FlagNotice

	data, err := json.Marshal(Result{Event: ev})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "event",
		"event": {
			"paths": ["/a", "/b"],
			"kind": {"type":"modify","modify":{"kind":"name","mode":"both"}},
			"attrs": {"tracker": 3, "flag": "notice"}
		}
	}`, string(data))

	data, err = json.Marshal(Result{Err: ErrChannelClosed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"channel closed"}`, string(data))
}

func TestEvent_String(t *testing.T) {
	ev := NewEvent(KindRename(RenameBoth), "/a", "/b")
	assert.Equal(t, "modify(name(both)) [/a -> /b]", ev.String())

	ev = NewEvent(KindModifyOther(), "/dir")
	ev.Attrs.Flag = FlagRescan
	assert.Equal(t, "modify(other) [/dir] flag=rescan", ev.String())
	assert.Equal(t, "", Event{}.Path())
}

func TestErrors(t *testing.T) {
	cause := errors.New("inotify queue gone")

	err := BackendFailure("/w", cause)
	assert.ErrorIs(t, err, ErrBackendFailure)
	assert.ErrorIs(t, err, cause)

	var werr *WatchError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "/w", werr.Path)

	assert.ErrorIs(t, BackendFailure("", nil), ErrBackendFailure)
	assert.Equal(t, "watch /x: path not found", NewWatchError("watch", "/x", ErrPathNotFound).Error())
}

func TestResult_UnmarshalJSON(t *testing.T) {
	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"type":"event","event":{"paths":["/a","/b"],"kind":{"type":"modify","modify":{"kind":"name","mode":"both"}},"attrs":{"tracker":7}}}`), &r))
	require.False(t, r.IsError())
	assert.Equal(t, []string{"/a", "/b"}, r.Event.Paths)
	assert.True(t, r.Event.Kind.Equal(KindRename(RenameBoth)))
	assert.Equal(t, uint32(7), r.Event.Attrs.Tracker)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"error","error":"channel closed"}`), &r))
	assert.EqualError(t, r.Err, "channel closed")

	assert.Error(t, json.Unmarshal([]byte(`{"type":"event"}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"gossip"}`), &r))
}

func TestFlag_Text(t *testing.T) {
	for _, f := range []Flag{FlagNone, FlagRescan, FlagNotice} {
		text, err := f.MarshalText()
		require.NoError(t, err)

		var back Flag
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, f, back)
	}

	var f Flag
	assert.Error(t, f.UnmarshalText([]byte("ongoing")))
}
