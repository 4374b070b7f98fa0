package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// subscription is one subscriber channel and the events it wants.
type subscription struct {
	ch     chan Event
	accept func(Event) bool
}

// Bus fans events out to subscribers. Delivery never blocks the publisher: a
// full subscriber channel drops the event for that subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	closed  bool
	dropped atomic.Int64

	log    *EventLog // may be nil
	logger *slog.Logger
}

// NewBus creates an event bus. log may be nil to disable persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{log: log, logger: logger}
}

// Publish persists e unless it is transient, then offers it to every
// matching subscriber. Persistence failures are logged, not returned.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.log != nil && !Transient(e.EventType()) {
		if _, err := b.log.Append(ctx, e); err != nil {
			b.logger.Error("failed to persist event", "type", e.EventType(), "error", err)
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, s := range b.subs {
		if !s.accept(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
			b.logger.Warn("subscriber channel full, dropping event",
				"type", e.EventType(),
				"entity_type", e.EntityType(),
				"entity_id", e.EntityID())
		}
	}
	return nil
}

func (b *Bus) subscribe(bufferSize int, accept func(Event) bool) <-chan Event {
	ch := make(chan Event, bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, &subscription{ch: ch, accept: accept})
	return ch
}

// Subscribe returns a channel of events of one type.
func (b *Bus) Subscribe(eventType string, bufferSize int) <-chan Event {
	return b.subscribe(bufferSize, func(e Event) bool { return e.EventType() == eventType })
}

// SubscribeAll returns a channel of every event.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	return b.subscribe(bufferSize, func(Event) bool { return true })
}

// SubscribeEntity returns a channel of events about one entity.
func (b *Bus) SubscribeEntity(entityType, entityID string, bufferSize int) <-chan Event {
	return b.subscribe(bufferSize, func(e Event) bool {
		return e.EntityType() == entityType && e.EntityID() == entityID
	})
}

// Unsubscribe removes and closes a subscription channel. Unknown channels
// are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subs, func(s *subscription) bool { return s.ch == ch })
	if i < 0 {
		return
	}
	close(b.subs[i].ch)
	b.subs = slices.Delete(b.subs, i, i+1)
}

// Dropped returns how many deliveries were dropped on full channels.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are discarded and
// later subscriptions receive an already closed channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	return nil
}
