package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket: each client may burst up to
// Burst requests and regains RequestsPerMinute tokens per minute.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	burst             int
	now               func() time.Time

	clients map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. A burst below one is raised to
// one.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		burst:             max(1, burst),
		now:               time.Now,
		clients:           make(map[string]*bucket),
	}
}

// Allow takes one token from the client's bucket.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[clientID]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastSeen: now}
		rl.clients[clientID] = b
	}
	rl.refill(b, now)

	if b.tokens < 1 {
		perToken := time.Minute / time.Duration(rl.requestsPerMinute)
		wait := time.Duration(math.Ceil((1 - b.tokens) * float64(perToken)))
		return &RateLimitError{Limit: rl.requestsPerMinute, RetryAfter: wait}
	}
	b.tokens--
	return nil
}

func (rl *RateLimiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastSeen)
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(rl.burst), b.tokens+elapsed.Minutes()*float64(rl.requestsPerMinute))
	b.lastSeen = now
}

// Tokens returns the tokens currently left for a client.
func (rl *RateLimiter) Tokens(clientID string) float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.clients[clientID]
	if !ok {
		return float64(rl.burst)
	}
	rl.refill(b, rl.now())
	return b.tokens
}

// Cleanup forgets clients not seen for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	removed := 0
	for id, b := range rl.clients {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(idle); n > 0 {
				slog.Debug("Rate limiter cleanup", "removed_clients", n)
			}
		}
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int           // requests per minute
	RetryAfter time.Duration // how long until the next token
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d/min, retry after: %v)", e.Limit, e.RetryAfter)
}
