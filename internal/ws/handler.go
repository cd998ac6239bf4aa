package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"moodcam/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 256 * 1024, // annotated JPEG frames
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

const (
	frameReadDeadline = 60 * time.Second
	writeDeadline     = 10 * time.Second
	pingInterval      = 30 * time.Second
)

// FrameHandler accepts capture clients on /ws/frames. Each client sends a
// JSON metadata message followed by a binary frame; the handler runs the
// frame through the coordinator and replies with a JSON message and the
// annotated frame. Skipped cycles are answered from the cache, so the
// reply rate tracks the arrival rate even when classification lags.
type FrameHandler struct {
	coordinator *pipeline.Coordinator
}

// NewFrameHandler creates a frame ingress handler.
func NewFrameHandler(coordinator *pipeline.Coordinator) *FrameHandler {
	return &FrameHandler{coordinator: coordinator}
}

// ServeHTTP upgrades the connection and runs the frame loop.
func (h *FrameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	clientID := uuid.NewString()
	log.Printf("[WS] Capture client %s connected from %s", clientID, r.RemoteAddr)

	// The request context dies once ServeHTTP returns on a hijacked
	// connection, so the loop runs here with its own context.
	h.frameLoop(context.Background(), clientID, conn)
}

// frameLoop reads metadata/frame pairs until the client disconnects.
func (h *FrameHandler) frameLoop(ctx context.Context, clientID string, conn *websocket.Conn) {
	defer func() {
		conn.Close()
		log.Printf("[WS] Capture client %s disconnected", clientID)
	}()

	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(NewConnectedMessage(clientID)); err != nil {
		log.Printf("[WS] Failed to send connect ack to %s: %v", clientID, err)
		return
	}

	var seq atomic.Uint64
	var meta *FrameMetadata

	for {
		conn.SetReadDeadline(time.Now().Add(frameReadDeadline))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for client %s: %v", clientID, err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var m FrameMetadata
			if err := json.Unmarshal(data, &m); err != nil {
				// Malformed metadata skips this cycle, connection stays up.
				log.Printf("[WS] Client %s sent malformed metadata: %v", clientID, err)
				meta = nil
				continue
			}
			meta = &m

		case websocket.BinaryMessage:
			if meta == nil {
				log.Printf("[WS] Client %s sent a frame without metadata, dropping", clientID)
				continue
			}
			frame := &pipeline.Frame{
				ClientID:  clientID,
				Data:      data,
				Seq:       seq.Add(1),
				Timestamp: time.Now(),
				Width:     meta.Width,
				Height:    meta.Height,
			}
			if err := h.reply(ctx, conn, frame, meta); err != nil {
				log.Printf("[WS] Failed to reply to client %s: %v", clientID, err)
				return
			}
			meta = nil
		}
	}
}

// reply runs the coordinator and writes the (reply JSON, annotated frame)
// pair back to the client.
func (h *FrameHandler) reply(ctx context.Context, conn *websocket.Conn, frame *pipeline.Frame, meta *FrameMetadata) error {
	result, ok := h.coordinator.Handle(ctx, frame)

	out := ProcessedFrameReply{
		Type:              "processed_frame",
		ClientID:          frame.ClientID,
		Emotion:           result.Emotion.String(),
		OriginalTimestamp: meta.Timestamp,
		TimestampReceived: float64(time.Now().UnixMilli()) / 1000.0,
		Width:             meta.Width,
		Height:            meta.Height,
		Processed:         ok,
	}

	image := result.ImageData
	if !ok {
		// Nothing cached yet: echo the raw frame so the client keeps its
		// preview alive.
		image = frame.Data
	}

	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(out); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.BinaryMessage, image)
}

// EmotionHandler accepts downstream subscribers on /ws/emotions.
// An optional ?client_id= query parameter filters updates to a single
// capture client.
type EmotionHandler struct {
	hub *EmotionHub
}

// NewEmotionHandler creates a subscriber handler backed by a hub.
func NewEmotionHandler(hub *EmotionHub) *EmotionHandler {
	return &EmotionHandler{hub: hub}
}

// ServeHTTP upgrades the connection and keeps it registered until the
// subscriber goes away.
func (h *EmotionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientFilter := r.URL.Query().Get("client_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	log.Printf("[WS] Emotion subscriber connected from %s (filter: %q)", r.RemoteAddr, clientFilter)
	sub := h.hub.Register(clientFilter, conn)

	go h.writePump(sub)
	go h.readPump(clientFilter, sub)
}

// writePump is the only goroutine writing to the connection: it drains
// the hub queue and sends keepalive pings. The connection supports a
// single concurrent writer, so broadcasts and pings are serialized here.
// It exits when the queue is closed by Unregister or a write fails, and
// closing the connection then unblocks readPump.
func (h *EmotionHandler) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects disconnects.
func (h *EmotionHandler) readPump(clientFilter string, sub *subscriber) {
	defer h.hub.Unregister(clientFilter, sub)

	sub.conn.SetReadLimit(512) // subscribers shouldn't send much
	sub.conn.SetReadDeadline(time.Now().Add(frameReadDeadline))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(frameReadDeadline))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Emotion subscriber read error: %v", err)
			}
			break
		}
	}
}
