// Package registry provides a generic keyed in-memory store shared by
// the distributed-view registry and the semantic service. It carries
// no business logic; owning services layer their own semantics on top.
package registry

import "sync"

// Store keeps entities of type *T mapped by a comparable key K
// obtained from the supplied keySelector. It is safe for concurrent
// use.
type Store[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
}

// NewStore creates a Store. keySelector extracts the entity key
// (usually the ID field) from a value.
func NewStore[K comparable, T any](keySelector func(*T) K) *Store[K, T] {
	return &Store[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
}

// Put stores or overwrites a record. Nil values are ignored; callers
// validate beforehand.
func (s *Store[K, T]) Put(v *T) {
	if v == nil {
		return
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
}

// Get returns a record by key; nil when absent.
func (s *Store[K, T]) Get(key K) *T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key]
}

// Has reports whether a record exists under key.
func (s *Store[K, T]) Has(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Remove deletes a record.
func (s *Store[K, T]) Remove(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// List returns all stored records in unspecified order.
func (s *Store[K, T]) List() []*T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, v)
	}
	return out
}

// Len returns the number of stored records.
func (s *Store[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
