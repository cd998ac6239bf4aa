package pipeline

import (
	"testing"
	"time"

	"moodcam/internal/emotion"
)

type recordingHandler struct {
	updates []*EmotionUpdate
}

func (h *recordingHandler) OnEmotionUpdate(update *EmotionUpdate) {
	h.updates = append(h.updates, update)
}

func TestEventBusHandlerSubscription(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	all := &recordingHandler{}
	onlyCam2 := &recordingHandler{}
	unsubAll := bus.Subscribe(all)
	bus.SubscribeClient("cam-2", onlyCam2)

	bus.Publish(&EmotionUpdate{ClientID: "cam-1", Emotion: emotion.LabelHappy})
	bus.Publish(&EmotionUpdate{ClientID: "cam-2", Emotion: emotion.LabelSad})

	if len(all.updates) != 2 {
		t.Errorf("unfiltered handler saw %d updates, want 2", len(all.updates))
	}
	if len(onlyCam2.updates) != 1 || onlyCam2.updates[0].ClientID != "cam-2" {
		t.Errorf("filtered handler saw %+v, want the single cam-2 update", onlyCam2.updates)
	}

	unsubAll()
	bus.Publish(&EmotionUpdate{ClientID: "cam-1", Emotion: emotion.LabelFear})
	if len(all.updates) != 2 {
		t.Errorf("unsubscribed handler still received updates (%d total)", len(all.updates))
	}
}

func TestEventBusChannelSubscription(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch, unsubscribe := bus.SubscribeChannel(2)
	defer unsubscribe()

	bus.Publish(&EmotionUpdate{ClientID: "cam-1", Emotion: emotion.LabelNeutral})

	select {
	case update := <-ch:
		if update.Emotion != emotion.LabelNeutral {
			t.Errorf("channel received %s, want neutral", update.Emotion)
		}
	case <-time.After(time.Second):
		t.Fatal("channel subscriber received nothing")
	}
}

func TestEventBusSlowChannelDoesNotBlockPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	_, unsubscribe := bus.SubscribeChannel(1)
	defer unsubscribe()

	// The buffer holds one update; further publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(&EmotionUpdate{ClientID: "cam-1", Emotion: emotion.LabelAngry})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full channel subscriber")
	}
}
