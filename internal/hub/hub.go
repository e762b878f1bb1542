// Package hub fans out price events to connected realtime subscribers.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/quotefeed/internal/model"
)

// ErrSubscriberClosed is returned by Send after a subscriber has gone away.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber is a connected realtime client.
type Subscriber interface {
	// ID is unique while the subscriber is connected.
	ID() string

	// Send queues an event for delivery. It must not block.
	Send(ev model.Event) error
}

// Stats holds hub counters.
type Stats struct {
	Subscribers int
	Published   int64
	Delivered   int64
	Dropped     int64
}

// Hub is a concurrency-safe subscriber registry.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber

	logger *slog.Logger

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// New creates an empty Hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]Subscriber),
		logger: logger,
	}
}

// Subscribe registers sub. Re-subscribing an existing ID is a no-op.
func (h *Hub) Subscribe(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.ID()]; ok {
		return
	}
	h.subs[sub.ID()] = sub
	h.logger.Debug("subscriber added", "id", sub.ID(), "subscribers", len(h.subs))
}

// Unsubscribe removes the subscriber with the given ID, if present.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[id]; !ok {
		return
	}
	delete(h.subs, id)
	h.logger.Debug("subscriber removed", "id", id, "subscribers", len(h.subs))
}

// Publish delivers ev to every subscriber registered at the time of the call.
// Delivery failures are counted and logged, never returned or retried.
func (h *Hub) Publish(ev model.Event) {
	targets := h.snapshot()
	if len(targets) == 0 {
		return
	}
	h.published.Add(1)

	for _, sub := range targets {
		if err := deliver(sub, ev); err != nil {
			h.dropped.Add(1)
			h.logger.Debug("event dropped",
				"id", sub.ID(),
				"symbol", ev.Symbol,
				"error", err,
			)
			continue
		}
		h.delivered.Add(1)
	}
}

// HandleObservation publishes a persisted observation.
func (h *Hub) HandleObservation(_ context.Context, obs model.Observation) error {
	h.Publish(obs.Event())
	return nil
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.Len(),
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// snapshot copies the registry under the read lock.
func (h *Hub) snapshot() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.subs) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		out = append(out, sub)
	}
	return out
}

// deliver isolates a misbehaving subscriber, including one that panics.
func deliver(sub Subscriber, ev model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	return sub.Send(ev)
}
