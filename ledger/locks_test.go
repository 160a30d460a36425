package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLocks_EntriesDroppedAfterRelease(t *testing.T) {
	locks := newUserLocks()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user UserID) {
			defer wg.Done()
			release, err := locks.acquire(ctx, user)
			if !assert.NoError(t, err) {
				return
			}
			release()
			release() // second call is a no-op
		}(UserID([]string{"a", "b", "c"}[i%3]))
	}
	wg.Wait()

	assert.Zero(t, locks.held())
}

func TestUserLocks_CanceledWaiterLeavesNoEntry(t *testing.T) {
	locks := newUserLocks()

	release, err := locks.acquire(context.Background(), "u1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Zero(t, locks.held())
}

func TestUserLocks_DifferentUsersDoNotBlock(t *testing.T) {
	locks := newUserLocks()
	ctx := context.Background()

	releaseA, err := locks.acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	releaseB, err := locks.acquire(short, "b")
	require.NoError(t, err)
	releaseB()
}
