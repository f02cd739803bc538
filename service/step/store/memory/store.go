package memory

import (
	"context"
	"sync"

	"github.com/viant/stepflow/model/step"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/step/store"
)

type key struct {
	instanceID string
	name       string
}

// Store keeps step records in process memory.
type Store struct {
	mux     sync.RWMutex
	records map[key]step.Record
}

// Get returns a copy of the record.
func (s *Store) Get(ctx context.Context, instanceID, name string) (*step.Record, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	record, ok := s.records[key{instanceID, name}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Put stores the record unless one exists.
func (s *Store) Put(ctx context.Context, record *step.Record) error {
	if record == nil {
		return dao.ErrNilEntity
	}
	if record.InstanceID == "" || record.Name == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	k := key{record.InstanceID, record.Name}
	if _, ok := s.records[k]; ok {
		return nil
	}
	s.records[k] = *record
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.records)
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[key]step.Record)}
}

var _ store.Store = (*Store)(nil)
