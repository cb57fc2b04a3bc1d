package storage

import (
	"sync"
	"testing"
)

func TestSiteLocksSerializesSameSite(t *testing.T) {
	locks := NewSiteLocks()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("example.com")
			defer unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Errorf("expected at most 1 goroutine in critical section, saw %d", maxInCritical)
	}
}

func TestSiteLocksDistinctSitesIndependent(t *testing.T) {
	locks := NewSiteLocks()

	unlockA := locks.Lock("a.example.com")
	defer unlockA()

	// Acquiring a different site must not block while A is held.
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b.example.com")
		unlockB()
		close(done)
	}()

	<-done
}
