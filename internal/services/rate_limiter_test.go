package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientRateLimiter_BurstPerClient(t *testing.T) {
	rl := NewClientRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	assert.True(t, rl.Allow("10.0.0.2"), "clients have separate buckets")

	stats := rl.GetStats()
	assert.Equal(t, 2, stats["tracked_clients"])
	assert.Equal(t, 2, stats["burst"])
}

func TestClientRateLimiter_CleanupAndReset(t *testing.T) {
	rl := NewClientRateLimiter(1, 1)
	rl.Allow("a")
	rl.Allow("b")

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.GetStats()["tracked_clients"])

	rl.Reset()
	assert.Equal(t, 0, rl.GetStats()["tracked_clients"])
	assert.True(t, rl.Allow("a"), "reset restores the burst")
}
