// Package meta loads configuration documents from any afs location.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads YAML or JSON documents, expanding ${env.NAME} expressions
// before decoding.
type Service struct {
	fs      afs.Service
	baseURL string
}

// New creates a loader resolving relative locations against baseURL.
func New(fs afs.Service, baseURL string) *Service {
	return &Service{fs: fs, baseURL: baseURL}
}

// URL resolves location.
func (s *Service) URL(location string) string {
	if s.baseURL == "" || strings.Contains(location, "://") || strings.HasPrefix(location, "/") {
		return location
	}
	return url.Join(s.baseURL, location)
}

// Download returns the expanded document content.
func (s *Service) Download(ctx context.Context, location string) ([]byte, error) {
	URL := s.URL(location)
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", URL, err)
	}
	return []byte(Expand(string(data))), nil
}

// Load decodes the document at location into dest; ".json" documents are
// decoded as JSON, anything else as YAML.
func (s *Service) Load(ctx context.Context, location string, dest interface{}) error {
	data, err := s.Download(ctx, location)
	if err != nil {
		return err
	}
	if strings.EqualFold(path.Ext(location), ".json") {
		err = json.Unmarshal(data, dest)
	} else {
		err = yaml.Unmarshal(data, dest)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.URL(location), err)
	}
	return nil
}
