// Package events implements the process-wide notification fan-out used to
// push commit-time changes to live websocket subscribers. Events are
// ephemeral: no persistence, no replay, best-effort delivery.
package events

import (
	"encoding/json"
	"sync"
)

// Event is a topic-tagged payload broadcast to subscribers.
type Event struct {
	Tipe    string `json:"tipe"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Actions used in the Event field.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Encode marshals the event to its wire form.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher is the narrow interface services use to emit events after commit.
type Publisher interface {
	Publish(ev Event)
}

// CountingPublisher forwards every event to Next and reports it to Count.
// The composition root uses it to feed the published-event metric without
// coupling the hub to the metrics registry.
type CountingPublisher struct {
	Next  Publisher
	Count func(tipe, event string)
}

func (p CountingPublisher) Publish(ev Event) {
	if p.Count != nil {
		p.Count(ev.Tipe, ev.Event)
	}
	p.Next.Publish(ev)
}

// Hub fans events out to all live subscriptions. It is constructed once in
// the composition root and injected into every component that publishes or
// subscribes; there is no package-level instance.
type Hub struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
}

// NewHub constructs a Hub whose subscriptions buffer up to capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 128
	}
	return &Hub{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Publish copies the event into every subscription's queue. It never blocks:
// when a subscriber's queue is full the oldest pending event is discarded and
// the gap is counted, so a stalled consumer can observe that it lagged
// without ever stalling the publisher.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.push(ev)
	}
}

// Subscribe registers a new subscription. It observes future events only;
// there is no replay of events published before this call.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, capacity: h.capacity}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// SubscriberCount reports the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscription is one subscriber's independent cursor over published events.
type Subscription struct {
	hub      *Hub
	capacity int

	mu      sync.Mutex
	queue   []Event
	skipped uint64
	closed  bool
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.capacity {
		drop := len(s.queue) - s.capacity + 1
		s.queue = append(s.queue[:0], s.queue[drop:]...)
		s.skipped += uint64(drop)
	}
	s.queue = append(s.queue, ev)
}

// Drain returns all currently-queued events in publish order without
// blocking, along with the number of events skipped since the previous
// drain. A non-zero skip count means the consumer lagged; it resumes from
// the current point.
func (s *Subscription) Drain() ([]Event, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 && s.skipped == 0 {
		return nil, 0
	}
	out := s.queue
	skipped := s.skipped
	s.queue = nil
	s.skipped = 0
	return out, skipped
}

// Close removes the subscription from the hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.hub.unsubscribe(s)
}
