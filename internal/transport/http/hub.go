package http

import (
	"sync"

	"go.uber.org/zap"
	"trivia-arena/internal/domain"
)

const outboxSize = 32

// Hub maps transport ids to connection outboxes. It implements app.Publisher.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]chan domain.Event
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:  make(map[string]chan domain.Event),
		logger: logger,
	}
}

func (h *Hub) register(transportID string) <-chan domain.Event {
	ch := make(chan domain.Event, outboxSize)
	h.mu.Lock()
	h.conns[transportID] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(transportID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.conns[transportID]; ok {
		delete(h.conns, transportID)
		close(ch)
	}
}

// Publish queues evt for the connection without blocking. Events are never
// dropped: a connection whose outbox is full is closed instead, and the
// client rejoins to get the room state replayed.
func (h *Hub) Publish(transportID string, evt domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.conns[transportID]
	if !ok {
		return
	}
	select {
	case ch <- evt:
	default:
		h.logger.Warn("outbox full, closing connection",
			zap.String("conn", transportID),
			zap.String("type", evt.Type),
			zap.Int("queued", len(ch)),
		)
		delete(h.conns, transportID)
		close(ch)
	}
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
