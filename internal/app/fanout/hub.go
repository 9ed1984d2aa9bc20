package fanout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tripdesk/internal/domain/shared/money"
)

// Event is the guest-facing summary pushed to connected dashboards.
type Event struct {
	EventID    string      `json:"event_id"`
	Name       string      `json:"name"`
	Reference  string      `json:"reference"`
	BookingID  string      `json:"booking_id"`
	ItemKind   string      `json:"item_kind"`
	ItemID     string      `json:"item_id"`
	Status     string      `json:"status"`
	GuestName  string      `json:"guest_name"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end,omitempty"`
	Total      money.Money `json:"total"`
	OccurredAt time.Time   `json:"occurred_at"`
}

const defaultBuffer = 16

// Hub broadcasts events to in-process subscribers. Publish never waits: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	next    uint64
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a subscriber until ctx is done or the returned cancel
// func is called. The channel is closed on unsubscribe.
func (h *Hub) Subscribe(ctx context.Context, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

// Publish hands ev to every subscriber with room in its buffer and reports
// how many received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber was slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
