package echoapi

import (
	"testing"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_rateLimiter_allow(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.allow("a"), "tokens refill over time")
}

func Test_rateLimiter_evict(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.allow("idle")
	now = now.Add(clientIdleTTL / 2)
	rl.allow("recent")

	now = now.Add(clientIdleTTL/2 + time.Second)
	rl.mu.Lock()
	rl.evict(now)
	rl.mu.Unlock()

	assert.NotContains(t, rl.clients, "idle")
	assert.Contains(t, rl.clients, "recent")
}

func Test_bodyLimit(t *testing.T) {
	tests := []int64{512, 20 << 20, 1500000}
	for _, n := range tests {
		limit, err := bytes.Parse(bodyLimit(n))
		require.NoError(t, err, n)
		assert.Equal(t, n, limit)
	}
}
