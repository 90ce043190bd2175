package process

import (
	"sync"
	"time"
)

// Defaults for RestartPolicy.
const (
	DefaultRestartWindow = 60 * time.Second
	DefaultMaxRestarts   = 1
)

// RestartPolicy decides whether a failed run may be restarted. At most
// MaxRestarts failures are tolerated within any Window; the next one is
// fatal. Failures older than Window are forgotten.
type RestartPolicy struct {
	Window      time.Duration
	MaxRestarts int

	mu       sync.Mutex
	failures []time.Time
	restarts int
}

// NewRestartPolicy creates a policy. Zero values select the defaults:
// one restart, 60 second window.
func NewRestartPolicy(window time.Duration, maxRestarts int) *RestartPolicy {
	if window <= 0 {
		window = DefaultRestartWindow
	}
	if maxRestarts <= 0 {
		maxRestarts = DefaultMaxRestarts
	}
	return &RestartPolicy{Window: window, MaxRestarts: maxRestarts}
}

// Allow records a failure at and reports whether a restart is permitted.
func (p *RestartPolicy) Allow(at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := at.Add(-p.Window)
	kept := p.failures[:0]
	for _, f := range p.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	p.failures = append(kept, at)

	if len(p.failures) > p.MaxRestarts {
		return false
	}
	p.restarts++
	return true
}

// Restarts returns how many restarts have been allowed.
func (p *RestartPolicy) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}
