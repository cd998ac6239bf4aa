package pipeline

import (
	"sync"
)

// EventBus provides pub/sub for emotion updates. The coordinator publishes
// whenever the smoothed label changes; subscribers (websocket hub, history
// recorder) consume without coupling to the pipeline.
type EventBus struct {
	subscribers map[*eventSubscription]bool
	mu          sync.RWMutex
}

type eventSubscription struct {
	clientFilter string // Empty string means receive all clients
	channel      chan *EmotionUpdate
	handler      EmotionUpdateHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[*eventSubscription]bool),
	}
}

// Subscribe registers a handler for updates from all clients.
// Returns an unsubscribe function.
func (b *EventBus) Subscribe(handler EmotionUpdateHandler) func() {
	sub := &eventSubscription{
		handler: handler,
	}

	b.mu.Lock()
	b.subscribers[sub] = true
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}
}

// SubscribeClient registers a handler for updates from a specific client.
// Returns an unsubscribe function.
func (b *EventBus) SubscribeClient(clientID string, handler EmotionUpdateHandler) func() {
	sub := &eventSubscription{
		clientFilter: clientID,
		handler:      handler,
	}

	b.mu.Lock()
	b.subscribers[sub] = true
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}
}

// SubscribeChannel returns a channel that receives emotion updates and an
// unsubscribe function. A slow consumer drops updates rather than blocking
// the publishing path.
func (b *EventBus) SubscribeChannel(bufferSize int) (<-chan *EmotionUpdate, func()) {
	if bufferSize <= 0 {
		bufferSize = 10
	}

	ch := make(chan *EmotionUpdate, bufferSize)
	sub := &eventSubscription{
		channel: ch,
	}

	b.mu.Lock()
	b.subscribers[sub] = true
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[sub]; ok {
			delete(b.subscribers, sub)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish sends an update to all matching subscribers. Handlers are called
// synchronously to preserve update ordering; channel subscribers are
// non-blocking.
func (b *EventBus) Publish(update *EmotionUpdate) {
	if update == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if sub.clientFilter != "" && sub.clientFilter != update.ClientID {
			continue
		}

		if sub.handler != nil {
			sub.handler.OnEmotionUpdate(update)
		} else if sub.channel != nil {
			select {
			case sub.channel <- update:
			default:
				// Channel full, skip this update
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes all subscribers and closes channels.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub.channel != nil {
			close(sub.channel)
		}
		delete(b.subscribers, sub)
	}
}
