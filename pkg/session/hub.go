package session

import (
	"sync"

	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/types"
)

// subscriberBuffer bounds each subscriber's queue. A subscriber that falls
// this far behind starts losing events rather than stalling the producer.
const subscriberBuffer = 256

// Hub fans session events out to live-channel subscribers. Publishing never
// blocks: an in-flight generation keeps producing whether or not anyone is
// listening, and a slow or disconnected subscriber only loses its own
// events.
type Hub struct {
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[string]map[chan *types.ChannelEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		logger: logging.ForComponent("hub"),
		subs:   make(map[string]map[chan *types.ChannelEvent]struct{}),
	}
}

// Subscribe registers a live-channel consumer for the session. The returned
// cancel function detaches the subscriber and closes its channel; it is safe
// to call more than once.
func (h *Hub) Subscribe(sessionID string) (<-chan *types.ChannelEvent, func()) {
	ch := make(chan *types.ChannelEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan *types.ChannelEvent]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of the session. Events
// reach each subscriber in publish order. With no subscribers the event is
// dropped.
func (h *Hub) Publish(sessionID string, ev *types.ChannelEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warnf("dropping %s event for slow subscriber of session %s", ev.Type, sessionID)
		}
	}
}

// SubscriberCount returns how many live channels the session has.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
