// Package handlers reacts to bus events on behalf of the library and the
// quota monitor.
package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vmunix/stowaway/internal/events"
)

// Handler is a long-running event consumer.
type Handler interface {
	// Start consumes events until ctx ends or the bus closes. A closed bus
	// returns nil.
	Start(ctx context.Context) error

	// Name identifies the handler in logs.
	Name() string
}

// BaseHandler holds what every handler shares and tracks its subscriptions.
type BaseHandler struct {
	bus    *events.Bus
	logger *slog.Logger

	mu   sync.Mutex
	subs []<-chan events.Event
}

// NewBaseHandler creates a base handler.
func NewBaseHandler(bus *events.Bus, logger *slog.Logger) *BaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseHandler{bus: bus, logger: logger}
}

// Bus returns the event bus.
func (h *BaseHandler) Bus() *events.Bus {
	return h.bus
}

// Logger returns the handler's logger.
func (h *BaseHandler) Logger() *slog.Logger {
	return h.logger
}

// Subscribe subscribes to eventType and remembers the channel for
// Unsubscribe.
func (h *BaseHandler) Subscribe(eventType string, bufferSize int) <-chan events.Event {
	ch := h.bus.Subscribe(eventType, bufferSize)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe releases every channel obtained through Subscribe.
func (h *BaseHandler) Unsubscribe() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()
	for _, ch := range subs {
		h.bus.Unsubscribe(ch)
	}
}

// drain discards whatever is already buffered on ch.
func drain(ch <-chan events.Event) {
	for {
		select {
		case e := <-ch:
			if e == nil {
				return
			}
		default:
			return
		}
	}
}
