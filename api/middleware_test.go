package api

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/warp/resale-ledger/ledger"
)

func TestRateLimiter_SweepsIdleUsers(t *testing.T) {
	// GIVEN: Buckets for many distinct user ids
	// WHEN: They stay idle past the TTL and another user arrives
	// THEN: Only the active buckets remain

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 1, logrus.New())
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		rl.limiter(ledger.UserID(u))
	}
	assert.Len(t, rl.limiters, 4)

	clock = clock.Add(limiterIdleTTL / 2)
	rl.limiter("u1")
	assert.Len(t, rl.limiters, 4, "no sweep before the TTL")

	clock = clock.Add(limiterIdleTTL / 2)
	rl.limiter("u5")
	assert.Len(t, rl.limiters, 2)
	assert.Contains(t, rl.limiters, ledger.UserID("u1"))
	assert.Contains(t, rl.limiters, ledger.UserID("u5"))
}

func TestRateLimiter_KeepsBucketWhileActive(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(0.001, 1, logrus.New())
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	assert.True(t, rl.limiter("u1").Allow())
	clock = clock.Add(limiterIdleTTL - time.Second)
	assert.False(t, rl.limiter("u1").Allow(), "bucket survives while the user is active")
}
