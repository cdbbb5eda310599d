// Package stats keeps running totals for expansions: success and
// failure counts, a rolling average latency, and per-category
// condition counts.
package stats

import (
	"sync"
	"time"
)

// Tracker accumulates expansion outcomes. Safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	expansions int64
	successes  int64
	failures   int64
	avgLatency time.Duration
	categories map[string]int64
}

// Snapshot is a point-in-time copy of a Tracker's counters.
type Snapshot struct {
	Expansions     int64
	Successes      int64
	Failures       int64
	AverageLatency time.Duration
	Categories     map[string]int64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{categories: make(map[string]int64)}
}

// Record folds one expansion into the totals. categories lists the
// condition categories the expansion raised, one entry per condition.
func (t *Tracker) Record(success bool, elapsed time.Duration, categories []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expansions++
	if success {
		t.successes++
	} else {
		t.failures++
	}
	// Incremental mean; avoids keeping every sample.
	t.avgLatency += (elapsed - t.avgLatency) / time.Duration(t.expansions)
	for _, c := range categories {
		t.categories[c]++
	}
}

// Snapshot returns a copy of the current totals.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Expansions:     t.expansions,
		Successes:      t.successes,
		Failures:       t.failures,
		AverageLatency: t.avgLatency,
		Categories:     make(map[string]int64, len(t.categories)),
	}
	for k, v := range t.categories {
		s.Categories[k] = v
	}
	return s
}

// Reset zeroes every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expansions, t.successes, t.failures, t.avgLatency = 0, 0, 0, 0
	t.categories = make(map[string]int64)
}
