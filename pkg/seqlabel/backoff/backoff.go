// Package backoff holds the retry policy for transient tagger failures.
// The policy is a plain value consumed by the driver's per-record state
// transitions; it knows nothing about I/O or sleeping.
package backoff

import (
	"math/rand"
	"time"
)

// Policy describes capped exponential backoff with jitter.
type Policy struct {
	// MaxAttempts bounds calls per record, first try included.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Multiplier grows the delay per subsequent attempt.
	Multiplier float64
	// MaxDelay caps a single delay.
	MaxDelay time.Duration
	// Jitter is the fraction of the delay randomized on top of it, in
	// [0, 1]. 0.2 means up to +20%.
	Jitter float64
}

// Default mirrors the documented behavior: three attempts with exponential
// spacing.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// Delay returns the pause before the given attempt (attempt 1 is the retry
// after the first failure). Attempts below 1 return 0.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * rand.Float64()
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Exhausted reports whether another attempt is allowed after the given
// number of completed attempts.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
