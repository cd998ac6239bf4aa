package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"moodcam/internal/annotate"
	"moodcam/internal/detection"
	"moodcam/internal/emotion"
)

// DefaultClassifyTimeout bounds a single classification call. A hung
// classifier degrades to a no-result cycle instead of stalling the gate.
const DefaultClassifyTimeout = 2 * time.Second

// Coordinator is the top-level per-frame entry point. It decides, for
// every arriving frame, whether to classify it or serve the cached result,
// and converts noisy per-frame classifications into a stable smoothed
// label.
type Coordinator struct {
	locator    detection.FaceLocator
	classifier detection.EmotionClassifier
	gate       *ProcessingGate
	cache      *ResultCache
	window     *emotion.Window
	bus        *EventBus
	timeout    time.Duration

	// lastSmoothed is only touched by the goroutine holding the gate.
	lastSmoothed emotion.Label

	stats   Stats
	statsMu sync.RWMutex
}

// CoordinatorConfig holds construction parameters for a Coordinator.
type CoordinatorConfig struct {
	Locator         detection.FaceLocator
	Classifier      detection.EmotionClassifier
	EventBus        *EventBus // optional; updates are dropped when nil
	WindowSize      int       // defaults to emotion.DefaultWindowSize
	ClassifyTimeout time.Duration
}

// NewCoordinator creates a frame coordinator.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	timeout := config.ClassifyTimeout
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}

	return &Coordinator{
		locator:    config.Locator,
		classifier: config.Classifier,
		gate:       NewProcessingGate(),
		cache:      NewResultCache(),
		window:     emotion.NewWindow(config.WindowSize),
		bus:        config.EventBus,
		timeout:    timeout,
	}
}

// Handle runs the full per-frame decision and returns the best-effort
// (possibly stale) result pair. It never returns an error to the
// transport: the worst observable symptom of an internal failure is a
// stale or absent label. The second return value is false until the first
// classification succeeds.
func (c *Coordinator) Handle(ctx context.Context, frame *Frame) (Result, bool) {
	c.statsMu.Lock()
	c.stats.FramesReceived++
	c.statsMu.Unlock()

	captured, process := c.gate.Submit(frame)
	if !process {
		// Primary real-time-preserving path: O(1), never classifies.
		c.statsMu.Lock()
		c.stats.FramesSkipped++
		c.statsMu.Unlock()
		return c.cache.Load()
	}

	func() {
		defer c.gate.Release()
		c.processFrame(ctx, captured)
	}()

	return c.cache.Load()
}

// Window exposes the smoothing window (read-only use).
func (c *Coordinator) Window() *emotion.Window {
	return c.window
}

// Stats returns a copy of the current counters.
func (c *Coordinator) Stats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// runningMean folds a new sample into a running mean over n samples.
func runningMean(mean, sample float32, n uint64) float32 {
	return mean + (sample-mean)/float32(n)
}

// processFrame runs one classification cycle. Every failure leaves the
// cache and the smoothing window untouched; the deferred Release in Handle
// covers all exit paths.
func (c *Coordinator) processFrame(ctx context.Context, frame *Frame) {
	img, err := annotate.Decode(frame.Data)
	if err != nil {
		log.Printf("[Coordinator] Dropping undecodable frame from client %s: %v", frame.ClientID, err)
		c.statsMu.Lock()
		c.stats.DecodeFailures++
		c.statsMu.Unlock()
		return
	}

	boxes, err := c.locator.LocateFaces(ctx, frame.Data)
	if err != nil {
		log.Printf("[Coordinator] Face localization failed for client %s: %v", frame.ClientID, err)
		c.statsMu.Lock()
		c.stats.ClassifyFailures++
		c.statsMu.Unlock()
		return
	}

	box, ok := detection.Largest(boxes)
	if !ok {
		// Absence of a face is not an emotion signal; the previous
		// cached result stands.
		c.statsMu.Lock()
		c.stats.NoFaceCycles++
		c.statsMu.Unlock()
		return
	}

	if box.Width < detection.MinCropSide || box.Height < detection.MinCropSide {
		log.Printf("[Coordinator] Skipping classification for client %s: %v", frame.ClientID, detection.ErrDegenerateCrop)
		c.statsMu.Lock()
		c.stats.ClassifyFailures++
		c.statsMu.Unlock()
		return
	}

	crop, err := annotate.CropFace(img, box)
	if err != nil {
		log.Printf("[Coordinator] Face crop failed for client %s: %v", frame.ClientID, err)
		c.statsMu.Lock()
		c.stats.ClassifyFailures++
		c.statsMu.Unlock()
		return
	}

	classifyCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.classifier.Classify(classifyCtx, crop)
	inferenceMs := float32(time.Since(start).Milliseconds())
	if err != nil {
		// A failed classification must never inject a label.
		log.Printf("[Coordinator] Classification failed for client %s: %v", frame.ClientID, err)
		c.statsMu.Lock()
		c.stats.ClassifyFailures++
		c.statsMu.Unlock()
		return
	}

	c.window.Push(raw)
	smoothed, _ := c.window.Mode()

	annotated, err := annotate.DrawFaceBox(img, box, smoothed.String())
	if err != nil {
		// Serve the unannotated frame rather than losing the cycle.
		log.Printf("[Coordinator] Annotation failed for client %s: %v", frame.ClientID, err)
		annotated = frame.Data
	}

	producedAt := time.Now()
	c.cache.Store(Result{
		ImageData:  annotated,
		Emotion:    smoothed,
		ProducedAt: producedAt,
	})

	c.statsMu.Lock()
	c.stats.FramesProcessed++
	c.stats.LastProcessedAt = producedAt.Unix()
	c.stats.AvgInferenceMs = runningMean(c.stats.AvgInferenceMs, inferenceMs, c.stats.FramesProcessed)
	c.statsMu.Unlock()

	if smoothed != c.lastSmoothed {
		previous := c.lastSmoothed
		c.lastSmoothed = smoothed
		if c.bus != nil {
			c.bus.Publish(&EmotionUpdate{
				ClientID:  frame.ClientID,
				Emotion:   smoothed,
				Previous:  previous,
				Timestamp: producedAt,
			})
		}
	}
}
