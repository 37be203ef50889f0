// internal/services/deal_locker.go
package services

import (
	"sync"

	"github.com/google/uuid"
)

// dealLocker serializes work on the same deal inside one process. Entries are
// reference counted and dropped when the last holder releases them.
type dealLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*dealLock
}

type dealLock struct {
	mu   sync.Mutex
	refs int
}

func newDealLocker() *dealLocker {
	return &dealLocker{locks: make(map[uuid.UUID]*dealLock)}
}

// Lock blocks until the deal is free and returns the release function.
func (l *dealLocker) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &dealLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
