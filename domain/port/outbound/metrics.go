package outbound

// Metrics receives counters from the debounce engine and the facade.
type Metrics interface {
	RawEventReceived(backend string)
	EventEmitted(kind string)
	EventCoalesced()
	RenamePaired()
	RenameExpired()
	BackendError(fatal bool)
	PendingEntries(n int)
	SubscriberDropped()
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RawEventReceived(string) {}
func (NopMetrics) EventEmitted(string)     {}
func (NopMetrics) EventCoalesced()         {}
func (NopMetrics) RenamePaired()           {}
func (NopMetrics) RenameExpired()          {}
func (NopMetrics) BackendError(bool)       {}
func (NopMetrics) PendingEntries(int)      {}
func (NopMetrics) SubscriberDropped()      {}
