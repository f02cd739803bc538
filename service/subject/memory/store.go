package memory

import (
	"context"
	"sync"

	"github.com/viant/stepflow/service/subject"
)

// Store keeps subject state in memory.
type Store struct {
	mux    sync.RWMutex
	values map[string]string
	puts   int
}

// Get returns the stored value.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Put stores the value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.values[key] = value
	s.puts++
	return nil
}

// Puts returns how many writes were made.
func (s *Store) Puts() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.puts
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

var _ subject.Store = (*Store)(nil)
