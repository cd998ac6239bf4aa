package history

import (
	"log"

	"github.com/google/uuid"

	"moodcam/internal/pipeline"
)

// Recorder subscribes to the pipeline event bus and writes each emotion
// transition to the store. Write failures are logged and dropped; history
// persistence must never stall the frame path.
type Recorder struct {
	store       *Store
	unsubscribe func()
}

// NewRecorder attaches a recorder to the event bus.
func NewRecorder(store *Store, bus *pipeline.EventBus) *Recorder {
	r := &Recorder{store: store}
	r.unsubscribe = bus.Subscribe(r)
	return r
}

// OnEmotionUpdate implements pipeline.EmotionUpdateHandler.
func (r *Recorder) OnEmotionUpdate(update *pipeline.EmotionUpdate) {
	rec := &TransitionRecord{
		ID:        uuid.NewString(),
		ClientID:  update.ClientID,
		Emotion:   update.Emotion.String(),
		Previous:  update.Previous.String(),
		Timestamp: update.Timestamp,
	}
	if err := r.store.SaveTransition(rec); err != nil {
		log.Printf("[History] Failed to record transition: %v", err)
	}
}

// Close detaches the recorder from the event bus.
func (r *Recorder) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

var _ pipeline.EmotionUpdateHandler = (*Recorder)(nil)
