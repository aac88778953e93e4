package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/framez/backend/internal/models"
)

// Publisher emits post change events.
type Publisher interface {
	Publish(ctx context.Context, change models.PostChange) error
}

// Filter selects which changes a subscriber receives. Empty fields match everything.
type Filter struct {
	Table  string
	UserID string
}

// Matches reports whether change passes the filter.
func (f Filter) Matches(change models.PostChange) bool {
	if f.Table != "" && f.Table != change.Table {
		return false
	}
	if f.UserID != "" && f.UserID != change.OwnerID() {
		return false
	}
	return true
}

// Subscription is a live registration on the hub. Events arrive on C until
// Close is called or the hub shuts down, after which C is closed.
type Subscription struct {
	C <-chan models.PostChange

	id     uint64
	filter Filter
	ch     chan models.PostChange
	hub    *Hub
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.remove(s.id)
}

// Hub fans change events out to in-process subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	logger *slog.Logger
}

// NewHub constructs a hub whose subscribers buffer up to buffer events each.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer, logger: logger}
}

// Subscribe registers a new subscriber for changes matching filter.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan models.PostChange, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{C: ch, filter: filter, ch: ch, hub: h}
	if h.closed {
		close(ch)
		return sub
	}

	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers change to every matching subscriber. Subscribers whose
// buffer is full miss the event; delivery never blocks the publisher.
func (h *Hub) Publish(_ context.Context, change models.PostChange) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		if !sub.filter.Matches(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			h.logger.Warn("realtime subscriber lagging, dropping event", "subscriptionId", id, "type", change.Type, "table", change.Table)
		}
	}
	return nil
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close terminates every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
	}
}

var _ Publisher = (*Hub)(nil)
