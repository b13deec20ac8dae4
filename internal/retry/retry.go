// Package retry implements the exponential-backoff-with-jitter decision
// function used by the delivery worker.
package retry

import (
	"math/rand"
	"time"
)

const (
	DefaultBaseDelay   = 30 * time.Second
	DefaultMaxDelay    = 1 * time.Hour
	DefaultMaxAttempts = 5
	jitterFraction     = 0.1
)

// retryableStatuses are partner HTTP response codes worth retrying;
// anything else (including a successful 2xx, which never reaches this
// decision) is treated as a permanent partner-side problem.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Policy is the retry decision function parameterized by base delay,
// delay cap, and attempt budget. Whether to retry is deterministic; the
// retry delay carries random jitter of up to ±10%.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// NewPolicy returns a Policy with the spec defaults.
func NewPolicy() Policy {
	return Policy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Decision is the outcome of evaluating a delivery attempt's result.
type Decision struct {
	Retry       bool
	NextRetryAt time.Time
}

// Evaluate decides whether a delivery that has made attemptCount prior
// attempts and received responseStatus (0 for a network/transport
// error, no HTTP response at all) should be retried. now is the attempt
// clock, passed explicitly for deterministic testing.
func (p Policy) Evaluate(attemptCount int, responseStatus int, now time.Time) Decision {
	if attemptCount >= p.MaxAttempts {
		return Decision{Retry: false}
	}

	if responseStatus != 0 && !retryableStatuses[responseStatus] {
		return Decision{Retry: false}
	}

	delay := p.delayFor(attemptCount)
	return Decision{Retry: true, NextRetryAt: now.Add(delay)}
}

// IsRetryableStatus reports whether an HTTP status code should be
// retried, independent of attempt budget. Exposed for classification
// logic that needs the predicate without attempt-count bookkeeping.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// delayFor computes the nominal delay before the attemptCount-th retry.
// attemptCount is the 1-indexed count of attempts already made (as
// passed to Evaluate), so the first retry (attemptCount=1) uses
// exponent 0 and yields exactly base, matching Schedule's 0-indexed
// loop.
func (p Policy) delayFor(attemptCount int) time.Duration {
	base, max := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}

	exponent := attemptCount - 1
	if exponent < 0 {
		exponent = 0
	}

	delay := base * time.Duration(1<<uint(exponent))
	if delay > max || delay <= 0 { // overflow guard: shifting far enough wraps negative
		delay = max
	}

	jitterRange := float64(delay) * jitterFraction
	jitter := time.Duration(rand.Float64()*2*jitterRange - jitterRange)
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Schedule returns the nominal (unjittered) delay before each of the
// first maxAttempts retries, for startup logging and documentation.
func Schedule(maxAttempts int) []time.Duration {
	p := NewPolicy()
	p.MaxAttempts = maxAttempts
	schedule := make([]time.Duration, 0, maxAttempts)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		delay := p.BaseDelay * time.Duration(1<<uint(attempt))
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		schedule = append(schedule, delay)
	}
	return schedule
}

// TotalRetryWindow sums Schedule's nominal delays: the unjittered ceiling
// on wall-clock time before a delivery that fails on every attempt
// reaches dead_letter.
func TotalRetryWindow(maxAttempts int) time.Duration {
	var total time.Duration
	for _, d := range Schedule(maxAttempts) {
		total += d
	}
	return total
}
