// Package notify delivers a rendered payload to many destinations, each
// independently.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path"
	"sync"

	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/tracing"
)

// Transport sends a payload to one destination.
type Transport interface {
	Send(ctx context.Context, destination string, payload interface{}) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, destination string, payload interface{}) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, destination string, payload interface{}) error {
	return f(ctx, destination, payload)
}

// Outcome is the result of one delivery.
type Outcome struct {
	Destination string `json:"destination"`
	Error       string `json:"error,omitempty"`
	Err         error  `json:"-"`
}

// OK reports whether the delivery succeeded.
func (o *Outcome) OK() bool { return o.Err == nil }

// Service fans a payload out to destinations.
type Service struct {
	transport Transport
}

// New creates a notification fan-out over transport.
func New(transport Transport) *Service {
	return &Service{transport: transport}
}

// Deliver sends payload to every destination concurrently and waits for all
// of them.  Outcomes follow the order of destinations; a failed delivery is
// logged and reported in its outcome only.
func (s *Service) Deliver(ctx context.Context, payload interface{}, destinations []string) []Outcome {
	ctx, span := tracing.StartSpan(ctx, "notify.Deliver", tracing.KindInternal)
	span.WithInt("destinations", len(destinations))
	defer span.End()

	outcomes := make([]Outcome, len(destinations))
	var wg sync.WaitGroup
	for i, destination := range destinations {
		outcomes[i].Destination = destination
		wg.Add(1)
		go func(outcome *Outcome) {
			defer wg.Done()
			if err := s.send(ctx, outcome.Destination, payload); err != nil {
				outcome.Err = fault.Delivery(Label(outcome.Destination), err)
				outcome.Error = outcome.Err.Error()
			}
		}(&outcomes[i])
	}
	wg.Wait()

	failed := 0
	for _, outcome := range outcomes {
		if !outcome.OK() {
			failed++
			log.Printf("notify: %v", outcome.Err)
		}
	}
	if failed > 0 {
		span.WithInt("failed", failed)
		if failed == len(outcomes) {
			log.Printf("notify: all %d deliveries failed", failed)
		}
	}
	return outcomes
}

func (s *Service) send(ctx context.Context, destination string, payload interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panicked: %v", r)
		}
	}()
	return s.transport.Send(ctx, destination, payload)
}

// Label masks the last path segment of a destination, where webhook URLs
// carry their token, so logs and spans never hold the secret.
func Label(destination string) string {
	parsed, err := url.Parse(destination)
	if err != nil || parsed.Host == "" {
		const keep = 10
		if len(destination) <= keep {
			return destination
		}
		return destination[:keep] + "..."
	}
	dir, _ := path.Split(parsed.Path)
	return parsed.Scheme + "://" + parsed.Host + dir + "***"
}
