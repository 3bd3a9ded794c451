package ingest

import (
	"time"

	"github.com/openrecords/caseharvester/internal/court"
)

// RetryPolicy decides whether a failed unit of work (one case fetch or one
// document download) gets another attempt, and how long to wait first.
// Budgets are local to the unit: a case's document retries never consume the
// case's own budget.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy with default delays. maxAttempts <= 0
// falls back to 3.
func NewRetryPolicy(maxAttempts int) *RetryPolicy {
	return NewRetryPolicyWithDelays(maxAttempts, 2*time.Second, 20*time.Second)
}

// NewRetryPolicyWithDelays builds a policy with explicit backoff bounds.
func NewRetryPolicyWithDelays(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts reports the per-unit attempt budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether another attempt is warranted after attemptsSoFar
// attempts ended with err. Terminal kinds (not found, parse, persist) and
// exhausted budgets are final.
func (p *RetryPolicy) ShouldRetry(err error, attemptsSoFar int) bool {
	if err == nil {
		return false
	}
	if attemptsSoFar >= p.maxAttempts {
		return false
	}
	return court.IsTransient(err)
}

// Backoff returns the wait before attempt attemptsSoFar+1. The delay grows
// linearly and is never zero, so a flapping source is not hammered.
func (p *RetryPolicy) Backoff(attemptsSoFar int) time.Duration {
	if attemptsSoFar < 1 {
		attemptsSoFar = 1
	}
	delay := time.Duration(attemptsSoFar) * p.baseDelay
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}
