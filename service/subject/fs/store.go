package fs

import (
	"context"
	"net/url"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	aurl "github.com/viant/afs/url"
	"github.com/viant/stepflow/service/subject"
)

// Store keeps one file per key under baseURL.
type Store struct {
	baseURL string
	fs      afs.Service
}

// Get reads the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	location := s.keyURL(key)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil || !exists {
		return "", false, err
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Put writes value under key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	return s.fs.Upload(ctx, s.keyURL(key), file.DefaultFileOsMode, strings.NewReader(value))
}

func (s *Store) keyURL(key string) string {
	return aurl.Join(s.baseURL, url.PathEscape(key))
}

// New creates a store rooted at baseURL.
func New(baseURL string) *Store {
	return &Store{baseURL: aurl.Normalize(baseURL, file.Scheme), fs: afs.New()}
}

var _ subject.Store = (*Store)(nil)
