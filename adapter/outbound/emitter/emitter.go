package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/ajkula/GoNotify/domain/model"
)

// Emitter owns the sending side of a backend sink. Sends racing with Close
// never panic: Close cancels first, then waits for in-flight sends before
// closing the channel.
type Emitter struct {
	sink   chan<- model.RawEvent
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	once   sync.Once
}

func New(sink chan<- model.RawEvent) *Emitter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Emitter{
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the emitter stops.
func (e *Emitter) Context() context.Context {
	return e.ctx
}

// Send delivers raw, stamping the time if unset. It returns false once the
// emitter is stopped.
func (e *Emitter) Send(raw model.RawEvent) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.ctx.Err() != nil {
		return false
	}
	if raw.Time.IsZero() {
		raw.Time = time.Now()
	}

	select {
	case e.sink <- raw:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// Rescan reports that events under path may have been lost.
func (e *Emitter) Rescan(path string) bool {
	return e.Send(model.RawEvent{Path: path, Op: model.OpRescan, Entry: model.EntryDir})
}

// Fail sends a terminal error for path and stops further sends.
func (e *Emitter) Fail(path string, err error) {
	e.Send(model.RawEvent{Path: path, Err: err, Fatal: true})
}

// Stop cancels pending and future sends without closing the sink.
func (e *Emitter) Stop() {
	e.cancel()
}

// Close stops the emitter and closes the sink exactly once.
func (e *Emitter) Close() {
	e.once.Do(func() {
		e.cancel()
		e.mu.Lock()
		close(e.sink)
		e.mu.Unlock()
	})
}
