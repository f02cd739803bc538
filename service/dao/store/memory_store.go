package store

import (
	"context"
	"sync"

	"github.com/viant/stepflow/service/dao"
)

// MemoryStore is a generic in-memory dao.Service.  Records are copied on
// the way in and out; clone, when set, deep-copies reference fields such as
// maps so a caller mutating a loaded record never races with a reader.
type MemoryStore[K comparable, T any] struct {
	mu      sync.RWMutex
	records map[K]T
	key     func(*T) K
	filter  func(*T, []*dao.Parameter) bool
	clone   func(*T) T
}

// NewMemoryStore creates a store keyed by key; filter decides which records
// List returns and may be nil.
func NewMemoryStore[K comparable, T any](key func(*T) K, filter func(*T, []*dao.Parameter) bool) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records: make(map[K]T),
		key:     key,
		filter:  filter,
		clone:   func(t *T) T { return *t },
	}
}

// WithClone replaces the shallow copy used for every read and write.
func (s *MemoryStore[K, T]) WithClone(clone func(*T) T) *MemoryStore[K, T] {
	s.clone = clone
	return s
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.key(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = s.clone(v)
	return nil
}

// Load returns a copy of the record or dao.ErrNotFound.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	var zero K
	if key == zero {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	ret := s.clone(&v)
	return &ret, nil
}

// Update applies fn to a copy of the record under the write lock.
func (s *MemoryStore[K, T]) Update(_ context.Context, key K, fn func(*T) error) (*T, error) {
	var zero K
	if key == zero {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	updated := s.clone(&v)
	if err := fn(&updated); err != nil {
		return nil, err
	}
	s.records[key] = s.clone(&updated)
	return &updated, nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns copies of the records matching parameters.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		record := s.clone(&v)
		if s.filter != nil && !s.filter(&record, parameters) {
			continue
		}
		out = append(out, &record)
	}
	return out, nil
}
