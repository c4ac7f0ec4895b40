package session

import (
	"context"
	"log/slog"
	"sync"

	"channel-history/internal/domain"
	"channel-history/internal/observability"
)

type listener struct {
	id uint64
	fn func(domain.Event)
}

// Bus dispatches events to the listeners registered for their kind.
// Events are delivered one at a time from the Run loop, so listeners of a
// given kind are never invoked concurrently.
type Bus struct {
	mu        sync.RWMutex
	listeners map[domain.EventKind][]listener
	nextID    uint64

	// Buffered queue of events waiting for dispatch
	events chan domain.Event
}

// NewBus creates a bus with an event queue of the given size
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		listeners: make(map[domain.EventKind][]listener),
		events:    make(chan domain.Event, queueSize),
	}
}

// Subscribe registers fn for events of the given kind and returns a func
// that removes the registration
func (b *Bus) Subscribe(kind domain.EventKind, fn func(domain.Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[kind] = append(b.listeners[kind], listener{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(kind, id) })
	}
}

func (b *Bus) unsubscribe(kind domain.EventKind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			b.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(b.listeners[kind]) == 0 {
		delete(b.listeners, kind)
	}
}

// ListenerCount returns the number of listeners registered for kind
func (b *Bus) ListenerCount(kind domain.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

// Publish queues an event for dispatch. It blocks while the queue is full
// and gives up when ctx is done.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	select {
	case b.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches queued events until ctx is cancelled
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("event bus stopped")
			return ctx.Err()
		case event := <-b.events:
			b.Dispatch(event)
		}
	}
}

// Dispatch delivers one event synchronously to the listeners of its kind
func (b *Bus) Dispatch(event domain.Event) {
	b.mu.RLock()
	ls := make([]listener, len(b.listeners[event.Kind()]))
	copy(ls, b.listeners[event.Kind()])
	b.mu.RUnlock()

	observability.EventsDispatched.WithLabelValues(string(event.Kind())).Inc()
	for _, l := range ls {
		l.fn(event)
	}
}
