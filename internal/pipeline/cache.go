package pipeline

import "sync"

// ResultCache holds the last successful (annotated image, smoothed label)
// pair. It is written only by the processing path while the gate is held
// and read by every skipped caller, so the lock covers only the brief
// copy, never a classification.
//
// Stored image bytes must not be mutated after Store; readers share the
// slice under that immutability contract.
type ResultCache struct {
	mu     sync.RWMutex
	result Result
	valid  bool
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{}
}

// Store replaces the cached result.
func (c *ResultCache) Store(r Result) {
	c.mu.Lock()
	c.result = r
	c.valid = true
	c.mu.Unlock()
}

// Load returns a snapshot of the cached result. The second return value is
// false until the first successful classification completes.
func (c *ResultCache) Load() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result, c.valid
}
