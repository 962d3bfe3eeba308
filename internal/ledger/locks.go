package ledger

import (
	"fmt"
	"sync"
)

// positionLocks serializes trades per (user, instrument). Trades on
// different keys proceed in parallel; the guarded balance update in the
// store keeps cross-instrument trades for the same user safe.
//
// Entries are never evicted; the map grows with the set of (user,
// instrument) pairs actually traded, which is bounded by positions ever
// held.
type positionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPositionLocks() *positionLocks {
	return &positionLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *positionLocks) acquire(userID string, instrumentID int64) func() {
	key := fmt.Sprintf("%s/%d", userID, instrumentID)

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
