package ws

import (
	"time"

	"moodcam/internal/pipeline"
)

// FrameMetadata is the JSON text message a capture client sends before
// each binary frame.
type FrameMetadata struct {
	ClientID  string  `json:"client_id,omitempty"`
	Timestamp float64 `json:"timestamp"` // client clock, seconds
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// ConnectedMessage is sent once after a capture client connects.
type ConnectedMessage struct {
	Type     string `json:"type"` // "connected"
	ClientID string `json:"client_id"`
}

// ProcessedFrameReply is the JSON text message preceding each annotated
// binary frame returned to the capture client.
type ProcessedFrameReply struct {
	Type              string  `json:"type"` // "processed_frame"
	ClientID          string  `json:"client_id"`
	Emotion           string  `json:"emotion"`
	OriginalTimestamp float64 `json:"original_timestamp"`
	TimestampReceived float64 `json:"timestamp_received"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Processed         bool    `json:"processed"` // false until the first classification succeeds
}

// EmotionMessage is broadcast to /ws/emotions subscribers whenever a
// client's smoothed label changes.
type EmotionMessage struct {
	Type      string    `json:"type"` // "emotion_update"
	ClientID  string    `json:"client_id"`
	Emotion   string    `json:"emotion"`
	Previous  string    `json:"previous,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewConnectedMessage creates the connect acknowledgement for a client.
func NewConnectedMessage(clientID string) *ConnectedMessage {
	return &ConnectedMessage{
		Type:     "connected",
		ClientID: clientID,
	}
}

// NewEmotionMessage converts a pipeline update into its wire form.
func NewEmotionMessage(update *pipeline.EmotionUpdate) *EmotionMessage {
	return &EmotionMessage{
		Type:      "emotion_update",
		ClientID:  update.ClientID,
		Emotion:   update.Emotion.String(),
		Previous:  update.Previous.String(),
		Timestamp: update.Timestamp,
	}
}
