// Package sandbox fans extraction progress out to push-stream subscribers.
package sandbox

import (
	"sync"

	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// DefaultSubscriberBuffer is the per-subscriber queue depth.
const DefaultSubscriberBuffer = 32

// Hub keeps the live subscribers of every document.
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

var _ port.EventPublisher = (*Hub)(nil)

// NewHub creates a Hub whose subscribers queue up to buffer events each.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[int64]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscription receives the events published for one document after it was created.
type Subscription struct {
	docID int64
	ch    chan domain.StreamEvent
	hub   *Hub
	once  sync.Once
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan domain.StreamEvent {
	return s.ch
}

// Close detaches the subscription from its hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Subscribe registers a new subscriber for docID.
func (h *Hub) Subscribe(docID int64) *Subscription {
	s := &Subscription{docID: docID, ch: make(chan domain.StreamEvent, h.buffer), hub: h}

	h.mu.Lock()
	set, ok := h.subs[docID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[docID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish delivers ev to every current subscriber of docID without blocking.
// A subscriber whose queue is full misses the event.
func (h *Hub) Publish(docID int64, ev domain.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[docID] {
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.Int64("document_id", docID),
				zap.String("event", ev.Type),
			)
		}
	}
}

// Subscribers reports how many subscribers docID has.
func (h *Hub) Subscribers(docID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[docID])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[s.docID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.docID)
		}
	}
	close(s.ch)
}
