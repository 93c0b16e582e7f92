package monitor

import (
	"sync"
	"time"
)

// ProcessedSet remembers canonical links accepted during this process
// lifetime. It is not persisted.
type ProcessedSet struct {
	links map[string]time.Time
	last  *time.Time
	mu    sync.RWMutex
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{links: make(map[string]time.Time)}
}

func (s *ProcessedSet) Has(link string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.links[link]
	return ok
}

// Add records link as processed at. It reports false when link was
// already present.
func (s *ProcessedSet) Add(link string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link]; ok {
		return false
	}
	s.links[link] = at
	t := at
	s.last = &t
	return true
}

func (s *ProcessedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// LastProcessed returns the time of the most recent Add, or nil.
func (s *ProcessedSet) LastProcessed() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	t := *s.last
	return &t
}

func (s *ProcessedSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = make(map[string]time.Time)
	s.last = nil
}
