// Package backoff computes jittered exponential reconnect delays.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy describes how a caller-driven retry loop should pace its
// attempts. The zero value is not usable; use DefaultPolicy or build
// one from config.
type Policy struct {
	Base        time.Duration // delay for attempt 0
	Cap         time.Duration // upper bound before jitter
	JitterFrac  float64       // jitter drawn from U[0, JitterFrac]
	MaxAttempts int           // 0 means unlimited
}

// DefaultPolicy matches the reconnect pacing used against the bridge:
// 1s doubling up to 60s, with up to 25% jitter, 10 attempts per burst.
func DefaultPolicy() Policy {
	return Policy{
		Base:        1 * time.Second,
		Cap:         60 * time.Second,
		JitterFrac:  0.25,
		MaxAttempts: 10,
	}
}

// Delay returns the pause before the given attempt (0-based).
// min(base * 2^attempt, cap) scaled by (1 + U[0, jitter]).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.Base) * math.Pow(2, float64(attempt))
	if d > float64(p.Cap) {
		d = float64(p.Cap)
	}
	if p.JitterFrac > 0 {
		d *= 1 + rand.Float64()*p.JitterFrac
	}
	return time.Duration(d)
}

// Exhausted reports whether the policy allows another attempt.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
