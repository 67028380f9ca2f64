package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RawEventReceived("fsnotify")
	m.RawEventReceived("fsnotify")
	m.EventEmitted("create(file)")
	m.EventCoalesced()
	m.RenamePaired()
	m.RenameExpired()
	m.BackendError(true)
	m.PendingEntries(7)
	m.SubscriberDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rawEvents.WithLabelValues("fsnotify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("create(file)")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coalesced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renamesPaired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renamesExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendErrors.WithLabelValues("true")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.backendErrors.WithLabelValues("false")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriberDropped))
}

func TestPrometheus_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) }, "duplicate registration")
}
