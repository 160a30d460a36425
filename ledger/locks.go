package ledger

import (
	"context"
	"sync"
)

// userLocks serializes work per user. Different users never wait on each
// other. Entries are dropped when no goroutine holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[UserID]*userLock
}

type userLock struct {
	slot chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[UserID]*userLock)}
}

// acquire blocks until the user's lock is held or ctx is done.
func (l *userLocks) acquire(ctx context.Context, userID UserID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &userLock{slot: make(chan struct{}, 1)}
		l.locks[userID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.slot
			l.release(userID, lk)
		})
	}, nil
}

func (l *userLocks) release(userID UserID, lk *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, userID)
	}
}

// held reports how many users currently have a lock entry. Used by tests.
func (l *userLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
