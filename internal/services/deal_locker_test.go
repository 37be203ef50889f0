package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDealLockerSerializesSameDeal(t *testing.T) {
	locker := newDealLocker()
	id := uuid.New()

	var (
		wg      sync.WaitGroup
		counter int
		maxSeen int
		inside  int
		guard   sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locker.Lock(id)
			guard.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			guard.Unlock()

			counter++

			guard.Lock()
			inside--
			guard.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locker.locks)
}

func TestDealLockerIndependentDeals(t *testing.T) {
	locker := newDealLocker()
	releaseA := locker.Lock(uuid.New())
	releaseB := locker.Lock(uuid.New())

	assert.Len(t, locker.locks, 2)
	releaseA()
	releaseB()
	assert.Empty(t, locker.locks)
}
