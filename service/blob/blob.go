// Package blob caches derived artifacts under fingerprinted keys.
package blob

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	aurl "github.com/viant/afs/url"
	"github.com/viant/stepflow/model/fault"
	"golang.org/x/crypto/blake2b"
)

// Object describes a stored artifact.
type Object struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Digest   string `json:"digest"`
	Size     int    `json:"size"`
}

// Store writes artifacts to an afs location and publishes them under a
// public base URL.
type Store struct {
	baseURL    string
	publicBase string
	fs         afs.Service
}

// New creates a store writing under baseURL (any afs scheme) whose objects
// are served from publicBase.  An empty publicBase serves from baseURL.
func New(baseURL, publicBase string) *Store {
	baseURL = aurl.Normalize(baseURL, file.Scheme)
	if publicBase == "" {
		publicBase = baseURL
	}
	return &Store{baseURL: baseURL, publicBase: publicBase, fs: afs.New()}
}

// Key builds "subject/epochSeconds/filename".
func Key(subject string, modified time.Time, filename string) string {
	return subject + "/" + strconv.FormatInt(modified.Unix(), 10) + "/" + filename
}

// Filename returns the base name of a URL path.
func Filename(URL string) string {
	if parsed, err := url.Parse(URL); err == nil {
		URL = parsed.Path
	}
	return path.Base(URL)
}

// Put stores content under key.  Keys embed the fingerprint, so an
// existing object with the same digest is left untouched.
func (s *Store) Put(ctx context.Context, key string, content io.Reader) (*Object, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return nil, fault.Invalid("put blob", fmt.Errorf("invalid key %q", key))
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fault.Fetch("read blob "+key, err)
	}
	sum := blake2b.Sum256(data)
	object := &Object{Key: key, Location: s.Location(key), Digest: hex.EncodeToString(sum[:]), Size: len(data)}

	location := aurl.Join(s.baseURL, key)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fault.Persistence("check blob "+key, err)
	}
	if exists {
		if stored, err := s.fs.DownloadWithURL(ctx, location); err == nil && blake2b.Sum256(stored) == sum {
			return object, nil
		}
	}
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fault.Persistence("put blob "+key, err)
	}
	return object, nil
}

// Get reads a stored object.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, aurl.Join(s.baseURL, key))
	if err != nil {
		return nil, fault.Persistence("get blob "+key, err)
	}
	return data, nil
}

// Location resolves key against the public base.
func (s *Store) Location(key string) string {
	base, err := url.Parse(s.publicBase)
	if err != nil || base.Scheme == "" {
		return aurl.Join(s.publicBase, key)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref := &url.URL{Path: key}
	return base.ResolveReference(ref).String()
}
