package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/internal/idgen"
	"github.com/viant/stepflow/service/messaging"
)

// Config controls redelivery of an in-memory queue.
type Config struct {
	// MaxRedeliveries is how many times a nacked message is returned to the
	// queue before it is dead-lettered.
	MaxRedeliveries int
	RedeliveryDelay time.Duration
	Buffer          int
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		MaxRedeliveries: 3,
		RedeliveryDelay: 100 * time.Millisecond,
		Buffer:          1024,
	}
}

// Message is a delivery from an in-memory queue.
type Message[T any] struct {
	id         string
	payload    T
	deliveries int
	queue      *Queue[T]
	mu         sync.Mutex
	settled    bool
}

// ID returns the message identifier; it is stable across redeliveries.
func (m *Message[T]) ID() string { return m.id }

// Deliveries returns how many times the message was handed to a consumer.
func (m *Message[T]) Deliveries() int { return m.deliveries }

// T returns the payload.
func (m *Message[T]) T() *T { return &m.payload }

// Ack settles the message.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return messaging.ErrSettled
	}
	m.settled = true
	return nil
}

// Nack schedules a redelivery, or dead-letters the message.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return messaging.ErrSettled
	}
	m.settled = true
	if m.deliveries > m.queue.config.MaxRedeliveries {
		m.queue.deadLetter(m)
		return nil
	}
	next := &Message[T]{id: m.id, payload: m.payload, deliveries: m.deliveries, queue: m.queue}
	go m.queue.redeliver(next)
	return nil
}

// Queue is a buffered in-process messaging.Queue.
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	mu       sync.Mutex
	dead     []*Message[T]
	closed   chan struct{}
	once     sync.Once
}

// NewQueue creates an in-memory queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.Buffer),
		config:   config,
		closed:   make(chan struct{}),
	}
}

// Publish enqueues a copy of t, blocking while the buffer is full.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	select {
	case <-q.closed:
		return context.Canceled
	default:
	}
	msg := &Message[T]{id: idgen.New(), payload: *t, queue: q}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return context.Canceled
	case q.messages <- msg:
		return nil
	}
}

// Consume blocks until a message is available.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		msg.deliveries++
		return msg, nil
	case <-q.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting and handing out messages.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Size returns the number of buffered messages.
func (q *Queue[T]) Size() int { return len(q.messages) }

// DeadLetters returns the payloads of dead-lettered messages.
func (q *Queue[T]) DeadLetters() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	ret := make([]T, 0, len(q.dead))
	for _, m := range q.dead {
		ret = append(ret, m.payload)
	}
	return ret
}

func (q *Queue[T]) deadLetter(m *Message[T]) {
	q.mu.Lock()
	q.dead = append(q.dead, m)
	q.mu.Unlock()
}

func (q *Queue[T]) redeliver(m *Message[T]) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-q.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := clock.Sleep(ctx, q.config.RedeliveryDelay); err != nil {
		return
	}
	select {
	case q.messages <- m:
	case <-ctx.Done():
	}
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
