package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/inbound"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const defaultSubscriberBuffer = 256

type subscription struct {
	id string
	ch chan model.Result
}

func (s *subscription) ID() string             { return s.id }
func (s *subscription) C() <-chan model.Result { return s.ch }

// Broadcaster copies every Result it reads to all current subscribers.
// A subscriber whose buffer is full misses the result.
type Broadcaster struct {
	subscriptions map[string]*subscription
	buffer        int
	logger        outbound.Logger
	metrics       outbound.Metrics
	mu            sync.RWMutex
}

var _ inbound.EventBroadcaster = (*Broadcaster)(nil)

func NewBroadcaster(buffer int, logger outbound.Logger, metrics outbound.Metrics) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}
	return &Broadcaster{
		subscriptions: make(map[string]*subscription),
		buffer:        buffer,
		logger:        logger,
		metrics:       metrics,
	}
}

func (b *Broadcaster) Subscribe() inbound.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id: uuid.NewString(),
		ch: make(chan model.Result, b.buffer),
	}
	b.subscriptions[sub.id] = sub

	b.logger.Debug("Subscriber added", "id", sub.id, "subscribers", len(b.subscriptions))
	return sub
}

func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscriptions[id]
	if !exists {
		return
	}
	delete(b.subscriptions, id)
	close(sub.ch)

	b.logger.Debug("Subscriber removed", "id", id, "subscribers", len(b.subscriptions))
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Publish delivers result to every subscriber without blocking.
func (b *Broadcaster) Publish(result model.Result) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscriptions {
		select {
		case sub.ch <- result:
		default:
			b.metrics.SubscriberDropped()
			b.logger.Debug("Subscriber too slow, result dropped", "id", id)
		}
	}
}

// Run publishes everything read from in until in is closed or ctx is done.
// On return all subscriptions are closed.
func (b *Broadcaster) Run(ctx context.Context, in <-chan model.Result) error {
	defer b.closeAll()

	for {
		select {
		case result, ok := <-in:
			if !ok {
				return nil
			}
			b.Publish(result)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscriptions {
		close(sub.ch)
		delete(b.subscriptions, id)
	}
}
