// Package ratelimiter implements a per-(endpoint, identity) token bucket.
package ratelimiter

import (
	"sync"
	"time"
)

// BucketPolicy configures the token bucket for one endpoint: capacity is
// the maximum burst size, rate is the refill rate in tokens per second.
type BucketPolicy struct {
	Capacity float64
	Rate     float64 // tokens per second
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is a token-bucket limiter keyed by endpoint then identity
// (tenant id or IP). Buckets are created lazily on first use and evicted
// after a period of inactivity by a background sweep.
//
// Example usage:
//
//	rl := ratelimiter.New()
//	rl.SetPolicy("ingest", ratelimiter.BucketPolicy{Capacity: 10, Rate: 10.0 / 60})
//
//	decision := rl.Allow("ingest", tenantID)
//	if !decision.Allowed {
//	    w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
//	    http.Error(w, "rate limited", http.StatusTooManyRequests)
//	}
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]map[string]*bucket // endpoint -> identity -> bucket
	policies    map[string]BucketPolicy       // endpoint -> policy
	idleTimeout time.Duration
	stopSweep   chan struct{}
	stopped     bool
}

// Decision is the outcome of an Allow check. ResetAfter is how long
// until the bucket refills to full capacity, exposed so callers can
// surface an X-RateLimit-Reset header alongside Limit/Remaining.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
	Limit      float64
	ResetAfter time.Duration
}

// New creates a rate limiter and starts its background eviction sweep.
// Buckets idle longer than 1 hour are evicted every 5 minutes, matching
// the coarse, single-process design this limiter targets.
func New() *RateLimiter {
	rl := &RateLimiter{
		buckets:     make(map[string]map[string]*bucket),
		policies:    make(map[string]BucketPolicy),
		idleTimeout: 1 * time.Hour,
		stopSweep:   make(chan struct{}),
	}

	go rl.sweep(5 * time.Minute)

	return rl
}

// SetPolicy configures the bucket capacity/refill rate for an endpoint.
// Call during initialization, before Allow is used for that endpoint.
func (rl *RateLimiter) SetPolicy(endpoint string, policy BucketPolicy) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.policies[endpoint] = policy
}

// Allow refills the bucket for (endpoint, identity) by elapsed time and
// consumes one token if available. Endpoints with no configured policy
// always allow (nothing to limit). Thread-safe.
func (rl *RateLimiter) Allow(endpoint, identity string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	policy, exists := rl.policies[endpoint]
	if !exists {
		return Decision{Allowed: true}
	}

	endpointBuckets, ok := rl.buckets[endpoint]
	if !ok {
		endpointBuckets = make(map[string]*bucket)
		rl.buckets[endpoint] = endpointBuckets
	}

	b, ok := endpointBuckets[identity]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: policy.Capacity, lastUpdate: now}
		endpointBuckets[identity] = b
	}

	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * policy.Rate
		if b.tokens > policy.Capacity {
			b.tokens = policy.Capacity
		}
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		resetAfter := time.Duration((policy.Capacity - b.tokens) / policy.Rate * float64(time.Second))
		return Decision{Allowed: true, Remaining: b.tokens, Limit: policy.Capacity, ResetAfter: resetAfter}
	}

	retryAfter := time.Duration((1 - b.tokens) / policy.Rate * float64(time.Second))
	resetAfter := time.Duration((policy.Capacity - b.tokens) / policy.Rate * float64(time.Second))
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter, Limit: policy.Capacity, ResetAfter: resetAfter}
}

// TrackedIdentities reports the current number of buckets held across all
// endpoints, for the rate_limit_tracked_identities gauge.
func (rl *RateLimiter) TrackedIdentities() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	count := 0
	for _, endpointBuckets := range rl.buckets {
		count += len(endpointBuckets)
	}
	return count
}

// sweep runs in a background goroutine, periodically evicting buckets
// that have sat idle past idleTimeout to bound memory growth.
func (rl *RateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for endpoint, endpointBuckets := range rl.buckets {
				for identity, b := range endpointBuckets {
					if now.Sub(b.lastUpdate) > rl.idleTimeout {
						delete(endpointBuckets, identity)
					}
				}
				if len(endpointBuckets) == 0 {
					delete(rl.buckets, endpoint)
				}
			}
			rl.mu.Unlock()

		case <-rl.stopSweep:
			return
		}
	}
}

// Stop stops the background sweep goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		close(rl.stopSweep)
		rl.stopped = true
	}
}
