package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"moodcam/internal/pipeline"
)

// sendBuffer is the per-subscriber outbound queue length. A subscriber
// that falls this far behind loses updates instead of slowing the
// frame-processing path.
const sendBuffer = 16

// subscriber is one /ws/emotions connection. Every write to the
// connection goes through the send channel and the single writePump
// goroutine; the hub never touches the socket directly.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// EmotionHub manages WebSocket connections for downstream consumers of
// smoothed emotion updates (LED mapper, music generation, dashboards).
// Subscribers may filter by client ID; an empty filter receives updates
// for all clients.
type EmotionHub struct {
	// clients maps client-ID filter -> set of subscribers.
	// The empty-string key holds unfiltered subscribers.
	clients map[string]map[*subscriber]bool
	mu      sync.RWMutex
}

// NewEmotionHub creates a new emotion hub.
func NewEmotionHub() *EmotionHub {
	return &EmotionHub{
		clients: make(map[string]map[*subscriber]bool),
	}
}

// Register adds a subscriber connection with an optional client filter.
func (h *EmotionHub) Register(clientFilter string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[clientFilter] == nil {
		h.clients[clientFilter] = make(map[*subscriber]bool)
	}
	h.clients[clientFilter][sub] = true
	log.Printf("[EmotionHub] Subscriber registered (filter: %q, total: %d)", clientFilter, len(h.clients[clientFilter]))
	return sub
}

// Unregister removes a subscriber and closes its outbound queue, which
// stops its write pump. Safe to call more than once.
func (h *EmotionHub) Unregister(clientFilter string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clients[clientFilter]; ok && subs[sub] {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.clients, clientFilter)
		}
		close(sub.send)
		log.Printf("[EmotionHub] Subscriber unregistered (filter: %q)", clientFilter)
	}
}

// SubscriberCount returns the total number of connected subscribers.
func (h *EmotionHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.clients {
		count += len(subs)
	}
	return count
}

// OnEmotionUpdate implements pipeline.EmotionUpdateHandler: it forwards
// the update to unfiltered subscribers and to subscribers filtering on
// the originating client.
func (h *EmotionHub) OnEmotionUpdate(update *pipeline.EmotionUpdate) {
	msg := NewEmotionMessage(update)
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[EmotionHub] Error marshaling emotion message: %v", err)
		return
	}

	h.broadcast("", data)
	h.broadcast(update.ClientID, data)
}

// broadcast queues a message for every subscriber under a filter key.
// The queueing is non-blocking: this runs on the frame-processing path,
// so a stalled subscriber drops updates rather than holding it up.
func (h *EmotionHub) broadcast(clientFilter string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.clients[clientFilter] {
		select {
		case sub.send <- message:
		default:
			log.Printf("[EmotionHub] Dropping update for slow subscriber (filter: %q)", clientFilter)
		}
	}
}

var _ pipeline.EmotionUpdateHandler = (*EmotionHub)(nil)
