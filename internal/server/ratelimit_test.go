package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(rpm, burst int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rpm, burst)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl, clock := newClockedLimiter(30, 3)

	for i := range 3 {
		require.NoError(t, rl.Allow("a"), "request %d", i)
	}
	err := rl.Allow("a")
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 30, rle.Limit)
	assert.Equal(t, 2*time.Second, rle.RetryAfter)

	clock.advance(time.Second)
	require.Error(t, rl.Allow("a"))
	clock.advance(2 * time.Second)
	require.NoError(t, rl.Allow("a"))

	clock.advance(time.Hour)
	assert.InDelta(t, 3, rl.Tokens("a"), 1e-9)
}

func TestRateLimiterClients(t *testing.T) {
	rl, clock := newClockedLimiter(60, 0)
	assert.InDelta(t, 1, rl.Tokens("new"), 1e-9)

	require.NoError(t, rl.Allow("a"))
	require.Error(t, rl.Allow("a"))
	require.NoError(t, rl.Allow("b"))

	clock.advance(10 * time.Minute)
	require.NoError(t, rl.Allow("b"))
	assert.Equal(t, 1, rl.Cleanup(5*time.Minute))
	assert.Equal(t, 0, rl.Cleanup(5*time.Minute))
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{Limit: 10, RetryAfter: 6 * time.Second}
	assert.Contains(t, err.Error(), "10/min")
	assert.Contains(t, err.Error(), "6s")
}

func TestRunMaintenanceWithoutLimiter(t *testing.T) {
	done := make(chan struct{})
	go func() {
		(&Server{}).RunMaintenance(t.Context())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunMaintenance blocked without a rate limiter")
	}
}
