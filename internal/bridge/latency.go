package bridge

import (
	"sync"
	"time"
)

// latencyRing keeps a bounded window of round-trip samples and serves
// a rolling average. Purely informational.
type latencyRing struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
}

func newLatencyRing(capacity int) *latencyRing {
	if capacity <= 0 {
		capacity = 16
	}
	return &latencyRing{samples: make([]time.Duration, capacity)}
}

func (r *latencyRing) Add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = d
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
}

// Average returns the rolling mean, or 0 when no samples exist.
func (r *latencyRing) Average() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.filled {
		n = len(r.samples)
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += r.samples[i]
	}
	return sum / time.Duration(n)
}
