package pipeline

import (
	"time"

	"moodcam/internal/emotion"
)

// Frame represents one encoded image received from a capture client.
// Frames are ephemeral: they are never queued, only the latest pending
// frame is retained between processing cycles.
type Frame struct {
	ClientID  string    // Originating client identifier
	Data      []byte    // Encoded image bytes (JPEG or PNG)
	Seq       uint64    // Arrival sequence number
	Timestamp time.Time // Arrival timestamp
	Width     int       // Source width (if known)
	Height    int       // Source height (if known)
}

// Result is the per-frame output pair: the last successfully annotated
// image and the smoothed emotion label in effect when it was produced.
type Result struct {
	ImageData  []byte        // Annotated frame (JPEG)
	Emotion    emotion.Label // Smoothed label
	ProducedAt time.Time     // When the classification completed
}

// EmotionUpdate is published whenever the smoothed label changes.
type EmotionUpdate struct {
	ClientID  string        `json:"client_id"`
	Emotion   emotion.Label `json:"emotion"`
	Previous  emotion.Label `json:"previous,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Stats contains coordinator performance counters.
type Stats struct {
	FramesReceived   uint64  `json:"frames_received"`
	FramesProcessed  uint64  `json:"frames_processed"`
	FramesSkipped    uint64  `json:"frames_skipped"`
	NoFaceCycles     uint64  `json:"no_face_cycles"`
	DecodeFailures   uint64  `json:"decode_failures"`
	ClassifyFailures uint64  `json:"classify_failures"`
	AvgInferenceMs   float32 `json:"avg_inference_ms"`
	LastProcessedAt  int64   `json:"last_processed_at"` // Unix timestamp
}

// EmotionUpdateHandler receives emotion updates from the coordinator.
type EmotionUpdateHandler interface {
	OnEmotionUpdate(update *EmotionUpdate)
}
