package hotchannel

import (
	"log/slog"
	"sync"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
)

// hub owns the subscriber set and the most recent terminal event.
type hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	subscribers map[uuid.UUID]*subscriber
	latest      []byte
	closed      bool
}

func newHub(logger *slog.Logger, m *metrics.Metrics) *hub {
	return &hub{
		logger:      logger,
		metrics:     m,
		subscribers: make(map[uuid.UUID]*subscriber),
	}
}

// add registers s and queues the latest terminal event for it. It reports
// false when the hub is closed.
func (h *hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.latest != nil && !s.enqueue(h.latest) {
		return false
	}
	h.subscribers[s.id] = s
	h.metrics.SetHotSubscribers(len(h.subscribers))
	h.logger.Debug("Subscriber connected", "subscriber", s.id, "subscribers", len(h.subscribers))
	return true
}

func (h *hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s.id]; !ok {
		return
	}
	delete(h.subscribers, s.id)
	h.metrics.SetHotSubscribers(len(h.subscribers))
	h.logger.Debug("Subscriber disconnected", "subscriber", s.id, "subscribers", len(h.subscribers))
}

// broadcast queues payload for every subscriber. Subscribers that fell
// sendBuffer messages behind are dropped.
func (h *hub) broadcast(kind build.Kind, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if kind.IsTerminal() {
		h.latest = payload
	}
	for id, s := range h.subscribers {
		if !s.enqueue(payload) {
			h.logger.Debug("Dropping subscriber", "subscriber", id)
			s.drop()
			delete(h.subscribers, id)
		}
	}
	h.metrics.SetHotSubscribers(len(h.subscribers))
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// close disconnects every subscriber. Later adds are refused.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subscribers {
		s.close(websocket.CloseGoingAway, "server shutting down")
		delete(h.subscribers, id)
	}
	h.metrics.SetHotSubscribers(0)
}
