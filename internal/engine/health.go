package engine

import (
	"sync"
	"time"
)

type HealthStatus string

const (
	StatusHealthy HealthStatus = "healthy"
	StatusFailed  HealthStatus = "failed"
)

// failedThreshold is the number of consecutive detector failures before a
// detector is reported failed. A single bad pass (transient file churn,
// permission hiccup) stays healthy.
const failedThreshold = 3

// DetectorHealth is one detector's externally visible health.
type DetectorHealth struct {
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	LastFailureAt       time.Time    `json:"lastFailureAt,omitzero"`
}

// healthTracker records consecutive failure counts per detector. poll()
// writes from the pass goroutine while the API reads concurrently.
type healthTracker struct {
	mu       sync.Mutex
	failures map[string]int
	lastErr  map[string]string
	lastAt   map[string]time.Time
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		failures: make(map[string]int),
		lastErr:  make(map[string]string),
		lastAt:   make(map[string]time.Time),
	}
}

func (h *healthTracker) recordSuccess(agent string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[agent] = 0
	h.lastErr[agent] = ""
}

func (h *healthTracker) recordFailure(agent string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[agent]++
	h.lastErr[agent] = err.Error()
	h.lastAt[agent] = time.Now()
}

// snapshot returns a consistent copy of every tracked detector's health.
func (h *healthTracker) snapshot() map[string]DetectorHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]DetectorHealth, len(h.failures))
	for agent, n := range h.failures {
		status := StatusHealthy
		if n >= failedThreshold {
			status = StatusFailed
		}
		out[agent] = DetectorHealth{
			Status:              status,
			ConsecutiveFailures: n,
			LastError:           h.lastErr[agent],
			LastFailureAt:       h.lastAt[agent],
		}
	}
	return out
}
