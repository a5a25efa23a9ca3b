package domain

import "time"

const (
	BreakerWindow    = 5 * time.Minute
	BreakerThreshold = 10
	BreakerCooldown  = time.Hour
)

// CircuitBreaker counts failures inside a rolling window and blocks calls for
// a cool-off period once too many pile up. The zero value uses the package
// defaults. Not safe for concurrent use; the owning session locks it.
type CircuitBreaker struct {
	Window    time.Duration
	Threshold int
	Cooldown  time.Duration

	failures  []time.Time
	openUntil time.Time
}

// Allow reports whether a call may go out at now.
func (cb *CircuitBreaker) Allow(now time.Time) bool {
	return !now.Before(cb.openUntil)
}

// OpenUntil returns the end of the current cool-off (zero if never tripped).
func (cb *CircuitBreaker) OpenUntil() time.Time {
	return cb.openUntil
}

// RecordFailure stores a failure and trips the breaker when the window holds
// Threshold failures. Tripping clears the failure history. Returns true only
// on the call that trips it.
func (cb *CircuitBreaker) RecordFailure(now time.Time) bool {
	cb.prune(now)
	cb.failures = append(cb.failures, now)
	if len(cb.failures) < cb.threshold() {
		return false
	}
	cb.openUntil = now.Add(cb.cooldown())
	cb.failures = nil
	return true
}

// Failures returns how many failures are inside the window at now.
func (cb *CircuitBreaker) Failures(now time.Time) int {
	cb.prune(now)
	return len(cb.failures)
}

func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.window())
	keep := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	cb.failures = keep
}

func (cb *CircuitBreaker) window() time.Duration {
	if cb.Window > 0 {
		return cb.Window
	}
	return BreakerWindow
}

func (cb *CircuitBreaker) threshold() int {
	if cb.Threshold > 0 {
		return cb.Threshold
	}
	return BreakerThreshold
}

func (cb *CircuitBreaker) cooldown() time.Duration {
	if cb.Cooldown > 0 {
		return cb.Cooldown
	}
	return BreakerCooldown
}
