package storage

import "sync"

// SiteLocks serializes discovery of the same site_url within this process.
// The map is grow-only: the set of distinct sites is small and stable, so
// entries are never reclaimed.
type SiteLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSiteLocks returns an empty lock table.
func NewSiteLocks() *SiteLocks {
	return &SiteLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a site, creating it on first use, and
// returns the unlock function.
func (s *SiteLocks) Lock(siteURL string) func() {
	s.mu.Lock()
	m, ok := s.locks[siteURL]
	if !ok {
		m = &sync.Mutex{}
		s.locks[siteURL] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
