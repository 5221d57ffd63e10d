package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	bucket := NewTokenBucket(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := bucket.Allow()
		assert.True(t, allowed, "request %d should pass", i)
	}

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Minute)
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(15 * time.Millisecond)

	allowed, _ = bucket.Allow()
	assert.True(t, allowed)
}

func TestRateLimiterIsolatesUsersAndActions(t *testing.T) {
	rl := NewRateLimiter()

	// Drain user1's send_message budget.
	for i := 0; i < 20; i++ {
		allowed, _ := rl.Allow("user1", "send_message")
		assert.True(t, allowed)
	}
	allowed, _ := rl.Allow("user1", "send_message")
	assert.False(t, allowed)

	// Other users and other actions are untouched.
	allowed, _ = rl.Allow("user2", "send_message")
	assert.True(t, allowed)
	allowed, _ = rl.Allow("user1", "open_conversation")
	assert.True(t, allowed)
}

func TestCleanupDropsStaleBuckets(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("user1", "send_message")
	rl.buckets["user1:send_message"].lastRefill = time.Now().Add(-2 * time.Hour)
	rl.Allow("user2", "send_message")

	rl.Cleanup()

	assert.NotContains(t, rl.buckets, "user1:send_message")
	assert.Contains(t, rl.buckets, "user2:send_message")
}
