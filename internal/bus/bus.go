// Package bus provides the in-process publish/subscribe fan-out for run
// lifecycle and node events. A Bus is constructed per engine and passed by
// reference; there is no package-level singleton.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hyejin/flowd/internal/flow"
)

// Handler receives a published run event.
type Handler func(flow.RunEvent)

type subscriber struct {
	id int64
	fn Handler
}

// Bus fans events out to type-specific and wildcard subscribers.
// Delivery is synchronous in registration order; type-specific
// subscribers are notified before wildcard ones.
type Bus struct {
	mu       sync.RWMutex
	nextID   int64
	byType   map[string][]subscriber
	wildcard []subscriber
}

func New() *Bus {
	return &Bus{byType: make(map[string][]subscriber)}
}

// Subscribe registers a handler for one event type and returns its
// unsubscribe function.
func (b *Bus) Subscribe(eventType string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[eventType] = append(b.byType[eventType], subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[eventType] = remove(b.byType[eventType], id)
	}
}

// SubscribeAll registers a handler for every event type and returns its
// unsubscribe function.
func (b *Bus) SubscribeAll(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcard = remove(b.wildcard, id)
	}
}

// Publish delivers the event to all matching subscribers. A panicking
// subscriber is isolated: the fault is logged and delivery continues.
// Handlers run outside the bus lock, so re-entrant publishes and
// subscriptions from inside a handler are safe.
func (b *Bus) Publish(ev flow.RunEvent) {
	b.mu.RLock()
	subs := make([]subscriber, 0, len(b.byType[ev.Type])+len(b.wildcard))
	subs = append(subs, b.byType[ev.Type]...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s, ev)
	}
}

// PublishEvent is a convenience wrapper that builds and publishes an event.
func (b *Bus) PublishEvent(eventType, runID string, payload map[string]any) {
	b.Publish(flow.RunEvent{
		ID:        flow.GenerateID("ev"),
		RunID:     runID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// Clear removes all registrations. Used for test isolation and shutdown.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType = make(map[string][]subscriber)
	b.wildcard = nil
}

// Channel returns a channel that receives published events until ctx is
// cancelled, then closes. Events are dropped when the buffer is full.
func (b *Bus) Channel(ctx context.Context, bufSize int) <-chan flow.RunEvent {
	ch := make(chan flow.RunEvent, bufSize)

	// A publish in flight at cancellation time may still hold a snapshot
	// containing this handler, so sends and the close are serialized.
	var mu sync.Mutex
	closed := false

	unsubscribe := b.SubscribeAll(func(e flow.RunEvent) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

func deliver(s subscriber, ev flow.RunEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", "event_type", ev.Type, "run_id", ev.RunID, "panic", r)
		}
	}()
	s.fn(ev)
}

func remove(subs []subscriber, id int64) []subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
