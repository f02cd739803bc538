// Package messaging defines the work queue between instance producers and
// the workers executing them.
package messaging

import (
	"context"
)

// Queue is a work queue of T payloads.
type Queue[T any] interface {
	// Publish enqueues a copy of t.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Durable is implemented by queues whose messages survive a restart.
type Durable interface {
	Durable() bool
}

// IsDurable reports whether queue keeps its messages across restarts.
func IsDurable[T any](queue Queue[T]) bool {
	durable, ok := queue.(Durable)
	return ok && durable.Durable()
}

// Message is a delivered payload awaiting settlement.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack settles the message as handled.
	Ack() error

	// Nack returns the message for redelivery, or dead-letters it once its
	// delivery budget is exhausted.
	Nack(err error) error
}

// ErrSettled is returned when a message is acked or nacked twice.
var ErrSettled = errSettled{}

type errSettled struct{}

func (errSettled) Error() string { return "message already settled" }
