package webhooks

import (
	"sync"
	"time"
)

// RateLimiter caps delivery attempts per endpoint with a token bucket per
// webhook ID. Keeps a misbehaving or slow endpoint from monopolizing the
// delivery pool.
type RateLimiter struct {
	mu           sync.RWMutex
	buckets      map[string]*tokenBucket
	maxTokens    int
	refillPeriod time.Duration
}

type tokenBucket struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillPeriod time.Duration
	lastRefill   time.Time
}

// NewRateLimiter allows maxRequests per period per endpoint.
func NewRateLimiter(maxRequests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*tokenBucket),
		maxTokens:    maxRequests,
		refillPeriod: period,
	}
}

// Allow reports whether a delivery to the endpoint may proceed now.
func (rl *RateLimiter) Allow(webhookID string) bool {
	rl.mu.Lock()
	bucket, exists := rl.buckets[webhookID]
	if !exists {
		bucket = &tokenBucket{
			tokens:       rl.maxTokens,
			maxTokens:    rl.maxTokens,
			refillPeriod: rl.refillPeriod,
			lastRefill:   time.Now(),
		}
		rl.buckets[webhookID] = bucket
	}
	rl.mu.Unlock()

	return bucket.take()
}

func (tb *tokenBucket) take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// refill adds one token per elapsed refill period. Caller holds tb.mu.
func (tb *tokenBucket) refill() {
	elapsed := time.Since(tb.lastRefill)
	if elapsed < tb.refillPeriod {
		return
	}
	periods := int(elapsed / tb.refillPeriod)
	tb.tokens = min(tb.tokens+periods, tb.maxTokens)
	tb.lastRefill = tb.lastRefill.Add(time.Duration(periods) * tb.refillPeriod)
}

// Reset clears the bucket for an endpoint.
func (rl *RateLimiter) Reset(webhookID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, webhookID)
}

// Remaining returns the tokens currently available for an endpoint.
func (rl *RateLimiter) Remaining(webhookID string) int {
	rl.mu.RLock()
	bucket, exists := rl.buckets[webhookID]
	rl.mu.RUnlock()

	if !exists {
		return rl.maxTokens
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	bucket.refill()
	return bucket.tokens
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
