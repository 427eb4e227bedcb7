package feed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"
)

// defaultRetryAfter is the pause applied when a 429 carries no Retry-After.
const defaultRetryAfter = 60 * time.Second

// RateLimiter throttles outbound fetches with a token bucket and honours
// Retry-After pauses announced by servers.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	clock   clock.Clock
	retryAt map[string]time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second.
// A non-positive rps disables the token bucket.
func NewRateLimiter(rps float64, burst int, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.WallClock
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		clock:   clk,
		retryAt: make(map[string]time.Time),
	}
}

// Wait blocks until a request to host may be made.
func (r *RateLimiter) Wait(ctx context.Context, host string) error {
	if d := r.Backoff(host); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(d):
		}
	}
	return r.limiter.Wait(ctx)
}

// Backoff returns how long host asked us to stay away.
func (r *RateLimiter) Backoff(host string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.retryAt[host]
	if !ok {
		return 0
	}
	d := at.Sub(r.clock.Now())
	if d <= 0 {
		delete(r.retryAt, host)
		return 0
	}
	return d
}

// RecordRateLimit notes a 429 from host. retryAfter is the raw header,
// either delay-seconds or an HTTP date.
func (r *RateLimiter) RecordRateLimit(host, retryAfter string) {
	d := parseRetryAfter(retryAfter, r.clock.Now())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt[host] = r.clock.Now().Add(d)
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return defaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := time.Parse(time.RFC1123, v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return defaultRetryAfter
}
