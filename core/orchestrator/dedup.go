package orchestrator

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// DefaultDedupWindow is how long a prompt fingerprint is remembered before
// the filter is rotated and the prompt is treated as new again.
const DefaultDedupWindow = 5 * time.Minute

// bloomFalsePositiveRate is tuned generously low: a false "seen before" only
// costs a spurious duplicate-prompt log line, never a correctness
// violation, so a cheap filter is preferable to an exact set.
const bloomFalsePositiveRate = 0.01

// bloomExpectedItems bounds the filter's memory footprint; this is a
// generous ceiling on distinct prompts seen within one dedup window, not a
// hard cap on total orchestrations.
const bloomExpectedItems = 10000

// PromptDedup flags prompts the decomposition path has already seen within
// the current window. The orchestrator only logs a flagged prompt; the
// duplicate submission is still planned and executed as usual. It
// rotates to a fresh filter every window rather than tracking per-entry
// expiry, trading a small window of cross-rotation forgetfulness for O(1)
// memory.
type PromptDedup struct {
	mu         sync.Mutex
	filter     *bloom.BloomFilter
	windowedAt time.Time
	window     time.Duration
}

// NewPromptDedup creates a PromptDedup with the given rotation window,
// falling back to DefaultDedupWindow for a non-positive value.
func NewPromptDedup(window time.Duration) *PromptDedup {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &PromptDedup{
		filter:     bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate),
		windowedAt: time.Now(),
		window:     window,
	}
}

// SeenRecently reports whether prompt has already been recorded within the
// current window, rotating the filter first if the window has elapsed. It
// always records prompt as seen before returning, so a second call with the
// same prompt and no rotation in between always reports true.
func (d *PromptDedup) SeenRecently(prompt string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.windowedAt) >= d.window {
		d.filter = bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate)
		d.windowedAt = time.Now()
	}

	key := []byte(prompt)
	seen := d.filter.Test(key)
	d.filter.Add(key)
	return seen
}
