package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	aurl "github.com/viant/afs/url"
	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/step"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/step/store"
)

// Store writes each record to <baseURL>/<instanceID>/<name>.json.
type Store struct {
	baseURL string
	fs      afs.Service
	mux     sync.Mutex
}

// Get reads a record.
func (s *Store) Get(ctx context.Context, instanceID, name string) (*step.Record, error) {
	location := s.recordURL(instanceID, name)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fault.Persistence("get step record", err)
	}
	if !exists {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fault.Persistence("get step record", err)
	}
	record := &step.Record{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fault.Persistence("decode step record", fmt.Errorf("%s: %w", location, err))
	}
	return record, nil
}

// Put writes the record unless its file exists.
func (s *Store) Put(ctx context.Context, record *step.Record) error {
	if record == nil {
		return dao.ErrNilEntity
	}
	if record.InstanceID == "" || record.Name == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fault.Invalid("encode step record", err)
	}
	location := s.recordURL(record.InstanceID, record.Name)

	s.mux.Lock()
	defer s.mux.Unlock()
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fault.Persistence("put step record", err)
	}
	if exists {
		return nil
	}
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fault.Persistence("put step record", err)
	}
	return nil
}

func (s *Store) recordURL(instanceID, name string) string {
	return aurl.Join(s.baseURL, instanceID, url.PathEscape(name)+".json")
}

// New creates a store rooted at baseURL; any afs scheme is accepted.
func New(baseURL string) *Store {
	return &Store{baseURL: aurl.Normalize(baseURL, file.Scheme), fs: afs.New()}
}

var _ store.Store = (*Store)(nil)
