package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/dao/criteria"
)

// Service persists instances as JSON documents under a base URL, one file
// per instance.  Any afs-supported scheme works (file://, mem://, s3://, gs://).
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, instance.Instance] = (*Service)(nil)

// Save persists an instance.
func (s *Service) Save(ctx context.Context, anInstance *instance.Instance) error {
	if anInstance == nil {
		return dao.ErrNilEntity
	}
	if anInstance.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, anInstance)
}

func (s *Service) save(ctx context.Context, anInstance *instance.Instance) error {
	data, err := json.Marshal(anInstance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance %s: %w", anInstance.ID, err)
	}
	location := s.instanceURL(anInstance.ID)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save instance to %s: %w", location, err)
	}
	return nil
}

// Load retrieves an instance.
func (s *Service) Load(ctx context.Context, id string) (*instance.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*instance.Instance, error) {
	location := s.instanceURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check instance %s: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("instance %s: %w", id, dao.ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance %s: %w", id, err)
	}
	ret := &instance.Instance{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %s: %w", id, err)
	}
	return ret, nil
}

// Update reloads, applies fn and rewrites the instance under the write
// lock.  Writers in other processes are not excluded.
func (s *Service) Update(ctx context.Context, id string, fn func(*instance.Instance) error) (*instance.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	anInstance, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = fn(anInstance); err != nil {
		return nil, err
	}
	if err = s.save(ctx, anInstance); err != nil {
		return nil, err
	}
	return anInstance, nil
}

// Delete removes an instance.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.instanceURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check instance %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("instance %s: %w", id, dao.ErrNotFound)
	}
	return s.fs.Delete(ctx, location)
}

// List returns the instances matching parameters.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	var ret []*instance.Instance
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			log.Printf("instance store: failed to read %s: %v", object.URL(), err)
			continue
		}
		anInstance := &instance.Instance{}
		if err := json.Unmarshal(data, anInstance); err != nil {
			log.Printf("instance store: failed to unmarshal %s: %v", object.URL(), err)
			continue
		}
		if !criteria.FilterInstance(string(anInstance.State), anInstance.Kind, parameters) {
			continue
		}
		ret = append(ret, anInstance)
	}
	return ret, nil
}

func (s *Service) instanceURL(id string) string {
	return url.Join(s.baseURL, path.Clean(id)+".json")
}

// New creates an afs-backed instance store rooted at baseURL.
func New(ctx context.Context, baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	baseURL = url.Normalize(baseURL, file.Scheme)
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory %s: %w", baseURL, err)
		}
	}
	return &Service{baseURL: baseURL, fs: fs}, nil
}
