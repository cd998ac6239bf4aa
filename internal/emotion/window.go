package emotion

import "sync"

// DefaultWindowSize is the number of raw labels the smoothing window
// retains. At a typical 10 fps capture rate this smooths over roughly one
// second of history.
const DefaultWindowSize = 10

// Window is a fixed-capacity history of raw emotion labels with a mode
// computation. It absorbs single-frame misclassifications without adding
// more than one window's worth of latency to a genuine emotion change.
type Window struct {
	mu       sync.RWMutex
	labels   []Label
	capacity int
}

// NewWindow creates a smoothing window with the given capacity.
// Non-positive capacities fall back to DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{
		labels:   make([]Label, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a raw label, evicting the oldest entry when the window is
// at capacity.
func (w *Window) Push(label Label) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.labels) == w.capacity {
		copy(w.labels, w.labels[1:])
		w.labels = w.labels[:len(w.labels)-1]
	}
	w.labels = append(w.labels, label)
}

// Mode returns the most frequent label currently in the window. When
// multiple labels tie on frequency the one seen most recently wins, which
// favors responsiveness to a genuine change. The second return value is
// false when the window is empty.
func (w *Window) Mode() (Label, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.labels) == 0 {
		return "", false
	}

	counts := make(map[Label]int, len(w.labels))
	for _, l := range w.labels {
		counts[l]++
	}

	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}

	// Scan from the newest entry so ties resolve to the most recent label.
	for i := len(w.labels) - 1; i >= 0; i-- {
		if counts[w.labels[i]] == best {
			return w.labels[i], true
		}
	}
	return "", false
}

// Len returns the number of labels currently held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.labels)
}

// Capacity returns the maximum number of labels the window retains.
func (w *Window) Capacity() int {
	return w.capacity
}

// Snapshot returns a copy of the current contents, oldest first.
func (w *Window) Snapshot() []Label {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Label, len(w.labels))
	copy(out, w.labels)
	return out
}
