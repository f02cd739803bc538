package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/internal/idgen"
	"github.com/viant/stepflow/service/messaging"
)

const (
	pendingDir  = "pending"
	inflightDir = "inflight"
	deadDir     = "dead"
)

// Envelope is the persisted form of a queued payload.
type Envelope[T any] struct {
	ID          string    `json:"id"`
	Data        T         `json:"data"`
	Deliveries  int       `json:"deliveries"`
	LastError   string    `json:"lastError,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Message is a delivery from a file-backed queue.
type Message[T any] struct {
	Envelope[T]
	name    string
	queue   *Queue[T]
	mu      sync.Mutex
	settled bool
}

// T returns the payload.
func (m *Message[T]) T() *T { return &m.Data }

// Ack removes the message from the in-flight directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return messaging.ErrSettled
	}
	m.settled = true
	return m.queue.fs.Delete(context.Background(), m.queue.url(inflightDir, m.name))
}

// Nack returns the message to pending, or moves it to the dead directory
// once MaxRedeliveries is exceeded.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return messaging.ErrSettled
	}
	m.settled = true
	if err != nil {
		m.LastError = err.Error()
	}
	target := pendingDir
	if m.Deliveries > m.queue.config.MaxRedeliveries {
		target = deadDir
	}
	return m.queue.settle(context.Background(), m, target)
}

// Config controls a file-backed queue.
type Config struct {
	// BaseURL is any afs location; plain paths are treated as file://.
	BaseURL         string
	MaxRedeliveries int
	// PollInterval is how often Consume rescans an empty pending directory.
	PollInterval time.Duration
}

// DefaultConfig returns a configuration rooted at baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		MaxRedeliveries: 3,
		PollInterval:    250 * time.Millisecond,
	}
}

// Queue is a messaging.Queue persisting each message as a JSON file, so
// queued work survives a process restart.
type Queue[T any] struct {
	fs     afs.Service
	config Config
	mu     sync.Mutex
}

// NewQueue creates the queue directories and returns messages left in
// flight by a previous process to the pending directory.
func NewQueue[T any](ctx context.Context, fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("queue base URL cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig("").PollInterval
	}
	config.BaseURL = url.Normalize(config.BaseURL, file.Scheme)
	q := &Queue[T]{fs: fs, config: config}
	for _, dir := range []string{pendingDir, inflightDir, deadDir} {
		location := q.url(dir, "")
		if exists, _ := fs.Exists(ctx, location); exists {
			continue
		}
		if err := fs.Create(ctx, location, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s: %w", location, err)
		}
	}
	names, err := q.names(ctx, inflightDir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := fs.Move(ctx, q.url(inflightDir, name), q.url(pendingDir, name)); err != nil {
			return nil, fmt.Errorf("failed to restore in-flight message %s: %w", name, err)
		}
	}
	if len(names) > 0 {
		log.Printf("queue %s: restored %d in-flight message(s)", config.BaseURL, len(names))
	}
	return q, nil
}

// Durable reports true: pending and in-flight messages outlive the process.
func (q *Queue[T]) Durable() bool { return true }

// Publish writes t to the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	envelope := Envelope[T]{ID: idgen.New(), Data: *t, PublishedAt: now}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", now.UnixNano(), envelope.ID)
	return q.fs.Upload(ctx, q.url(pendingDir, name), file.DefaultFileOsMode, bytes.NewReader(data))
}

// Consume claims the oldest pending message, polling until one appears or
// ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		msg, err := q.claim(ctx)
		if err != nil || msg != nil {
			return msg, err
		}
		if err := clock.Sleep(ctx, q.config.PollInterval); err != nil {
			return nil, err
		}
	}
}

// Size returns the number of pending messages.
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	names, err := q.names(ctx, pendingDir)
	return len(names), err
}

// DeadLetters returns the envelopes in the dead directory.
func (q *Queue[T]) DeadLetters(ctx context.Context) ([]*Envelope[T], error) {
	names, err := q.names(ctx, deadDir)
	if err != nil {
		return nil, err
	}
	var ret []*Envelope[T]
	for _, name := range names {
		envelope, err := q.read(ctx, q.url(deadDir, name))
		if err != nil {
			return nil, err
		}
		ret = append(ret, envelope)
	}
	return ret, nil
}

func (q *Queue[T]) claim(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	names, err := q.names(ctx, pendingDir)
	if err != nil || len(names) == 0 {
		return nil, err
	}
	name := names[0]
	envelope, err := q.read(ctx, q.url(pendingDir, name))
	if err != nil {
		log.Printf("queue %s: moving unreadable message %s to %s: %v", q.config.BaseURL, name, deadDir, err)
		_ = q.fs.Move(ctx, q.url(pendingDir, name), q.url(deadDir, name))
		return nil, nil
	}
	envelope.Deliveries++
	msg := &Message[T]{Envelope: *envelope, name: name, queue: q}
	if err := q.write(ctx, q.url(inflightDir, name), &msg.Envelope); err != nil {
		return nil, err
	}
	if err := q.fs.Delete(ctx, q.url(pendingDir, name)); err != nil {
		return nil, fmt.Errorf("failed to remove claimed message %s: %w", name, err)
	}
	return msg, nil
}

func (q *Queue[T]) settle(ctx context.Context, m *Message[T], target string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.write(ctx, q.url(target, m.name), &m.Envelope); err != nil {
		return err
	}
	return q.fs.Delete(ctx, q.url(inflightDir, m.name))
}

func (q *Queue[T]) names(ctx context.Context, dir string) ([]string, error) {
	objects, err := q.fs.List(ctx, q.url(dir, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s messages: %w", dir, err)
	}
	var ret []string
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		ret = append(ret, object.Name())
	}
	sort.Strings(ret)
	return ret, nil
}

func (q *Queue[T]) read(ctx context.Context, location string) (*Envelope[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", location, err)
	}
	envelope := &Envelope[T]{}
	if err := json.Unmarshal(data, envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", location, err)
	}
	return envelope, nil
}

func (q *Queue[T]) write(ctx context.Context, location string, envelope *Envelope[T]) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", location, err)
	}
	return nil
}

func (q *Queue[T]) url(dir, name string) string {
	if name == "" {
		return url.Join(q.config.BaseURL, dir)
	}
	return url.Join(q.config.BaseURL, dir, name)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
