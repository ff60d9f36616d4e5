package openai

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// proactiveRate keeps the request flow well inside the default
	// requests-per-minute tier (~180/min).
	proactiveRate = 3

	// proactiveBurst allows short bursts without waiting.
	proactiveBurst = 3

	// headerRetryAfter is the backoff header sent with 429 responses.
	headerRetryAfter = "Retry-After"
)

// rateLimiter combines proactive throttling with reactive backoff
// when the API answers 429.
type rateLimiter struct {
	bucket *rate.Limiter

	mu         sync.Mutex
	pauseUntil time.Time
}

// newRateLimiter creates a limiter with proactive throttling.
func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		bucket: rate.NewLimiter(rate.Limit(proactiveRate), proactiveBurst),
	}
}

// wait blocks until it's safe to make a request.
func (r *rateLimiter) wait(ctx context.Context) error {
	// 1. Token bucket (proactive throttling)
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	// 2. Server-imposed pause (reactive)
	r.mu.Lock()
	pauseUntil := r.pauseUntil
	r.mu.Unlock()

	if time.Now().Before(pauseUntil) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(pauseUntil)):
		}
	}

	return nil
}

// observe updates backoff state from a response. A 429 pauses new
// requests until the advertised Retry-After, or one second when the
// header is missing.
func (r *rateLimiter) observe(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}

	backoff := time.Second
	if retryAfter := resp.Header.Get(headerRetryAfter); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			backoff = time.Duration(seconds) * time.Second
		}
	}

	r.mu.Lock()
	if until := time.Now().Add(backoff); until.After(r.pauseUntil) {
		r.pauseUntil = until
	}
	r.mu.Unlock()
}
