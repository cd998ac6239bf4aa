package pipeline

import "sync"

// ProcessingGate guarantees at most one classification runs at a time and
// ensures the cycle that does run uses the freshest available frame.
//
// Frames arriving while the gate is busy only refresh the single pending
// slot; they never queue. Every frame superseded during a busy window is
// dropped except implicitly via the final overwritten slot value
// (drop-to-latest backpressure).
type ProcessingGate struct {
	mu      sync.Mutex
	busy    bool
	pending *Frame
}

// NewProcessingGate creates an idle gate with an empty pending slot.
func NewProcessingGate() *ProcessingGate {
	return &ProcessingGate{}
}

// Submit stores frame in the pending slot, overwriting any previous value.
// If the gate is idle it transitions to busy and returns the captured
// pending frame with process=true; the caller must then call Release
// exactly once, on every exit path. If the gate is busy it returns
// process=false and the caller should serve the cached result.
func (g *ProcessingGate) Submit(frame *Frame) (captured *Frame, process bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = frame
	if g.busy {
		return nil, false
	}

	g.busy = true
	captured = g.pending
	g.pending = nil
	return captured, true
}

// Release transitions the gate back to idle unconditionally. A processing
// cycle that fails to release would permanently stall the pipeline, so
// callers defer it immediately after a successful Submit.
func (g *ProcessingGate) Release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether a processing cycle is currently in flight.
func (g *ProcessingGate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
