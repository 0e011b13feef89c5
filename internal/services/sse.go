package services

import (
	"sync"
)

// NotificationEvent is pushed to live clients when a notification row is written.
type NotificationEvent struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	Message   string `json:"message"`
	TicketID  *uint  `json:"ticket_id,omitempty"`
	ProjectID *uint  `json:"project_id,omitempty"`
}

type sseClient struct {
	userID uint
	ch     chan NotificationEvent
}

// SSEHub fans notification events out to the stream of their recipient.
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a client that receives events addressed to userID.
func (h *SSEHub) Subscribe(clientID string, userID uint) <-chan NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan NotificationEvent, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish delivers the event to every stream of its recipient. Slow clients
// with a full buffer miss the event.
func (h *SSEHub) Publish(event NotificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != event.UserID {
			continue
		}
		select {
		case c.ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalSSEHub *SSEHub
	sseHubOnce   sync.Once
)

// GetSSEHub returns the process-wide hub.
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
