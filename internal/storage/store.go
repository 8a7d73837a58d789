package storage

import (
	"sort"
	"sync"

	"rbcast/internal/clock"
	"rbcast/internal/message"
)

// Store defines the interface for the delivered-id record.
type Store interface {
	// ShouldDeliver atomically checks and records id. It returns true only
	// the first time a given id is seen.
	ShouldDeliver(id message.ID) bool
	// Contains reports whether id was already delivered.
	Contains(id message.ID) bool
	// Len returns the number of delivered ids.
	Len() int
	// IDs returns the delivered ids in Lamport total order.
	IDs() []message.ID
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe; the set never shrinks.
type InMemoryStore struct {
	mu        sync.Mutex
	delivered map[message.ID]struct{}
}

// NewInMemoryStore creates an empty delivered set.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		delivered: make(map[message.ID]struct{}),
	}
}

// ShouldDeliver records id and reports whether it was new.
func (s *InMemoryStore) ShouldDeliver(id message.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.delivered[id]; exists {
		return false
	}
	s.delivered[id] = struct{}{}
	return true
}

// Contains reports whether id was delivered.
func (s *InMemoryStore) Contains(id message.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.delivered[id]
	return exists
}

// Len returns the number of delivered ids.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

// IDs returns the delivered ids ordered by time, ties broken by origin.
func (s *InMemoryStore) IDs() []message.ID {
	s.mu.Lock()
	ids := make([]message.ID, 0, len(s.delivered))
	for id := range s.delivered {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		return clock.Less(ids[i].Time, ids[i].Origin, ids[j].Time, ids[j].Origin)
	})
	return ids
}
