// Package metrics implements the Metrics port with Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const namespace = "gonotify"

type Prometheus struct {
	rawEvents         *prometheus.CounterVec
	events            *prometheus.CounterVec
	coalesced         prometheus.Counter
	renamesPaired     prometheus.Counter
	renamesExpired    prometheus.Counter
	backendErrors     *prometheus.CounterVec
	pending           prometheus.Gauge
	subscriberDropped prometheus.Counter
}

var _ outbound.Metrics = (*Prometheus)(nil)

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		rawEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "raw_events_total",
			Help:      "Raw events received from a backend.",
		}, []string{"backend"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "events_total",
			Help:      "Events delivered to consumers, by kind.",
		}, []string{"kind"}),
		coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debouncer",
			Name:      "coalesced_total",
			Help:      "Raw events merged into an already pending entry.",
		}),
		renamesPaired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debouncer",
			Name:      "renames_paired_total",
		}),
		renamesExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debouncer",
			Name:      "renames_expired_total",
			Help:      "Rename halves whose partner never arrived.",
		}),
		backendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "errors_total",
		}, []string{"fatal"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "debouncer",
			Name:      "pending_entries",
		}),
		subscriberDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Results not delivered to a slow subscriber.",
		}),
	}
}

func (p *Prometheus) RawEventReceived(backend string) {
	p.rawEvents.WithLabelValues(backend).Inc()
}

func (p *Prometheus) EventEmitted(kind string) {
	p.events.WithLabelValues(kind).Inc()
}

func (p *Prometheus) EventCoalesced()    { p.coalesced.Inc() }
func (p *Prometheus) RenamePaired()      { p.renamesPaired.Inc() }
func (p *Prometheus) RenameExpired()     { p.renamesExpired.Inc() }
func (p *Prometheus) SubscriberDropped() { p.subscriberDropped.Inc() }

func (p *Prometheus) BackendError(fatal bool) {
	p.backendErrors.WithLabelValues(strconv.FormatBool(fatal)).Inc()
}

func (p *Prometheus) PendingEntries(n int) {
	p.pending.Set(float64(n))
}
