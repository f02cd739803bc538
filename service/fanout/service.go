// Package fanout creates one child instance per parameter set.
package fanout

import (
	"context"
	"fmt"
	"log"

	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/tracing"
)

// Creator creates a single instance.
type Creator interface {
	Create(ctx context.Context, kind string, params instance.Parameters) (*instance.Instance, error)
}

// Outcome is the result of creating the element at Index.
type Outcome struct {
	Index      int                `json:"index"`
	InstanceID string             `json:"instanceId,omitempty"`
	Error      string             `json:"error,omitempty"`
	Instance   *instance.Instance `json:"-"`
	Err        error              `json:"-"`
}

// OK reports whether the element was created.
func (o *Outcome) OK() bool { return o.Err == nil && o.Instance != nil }

// Service dispatches batches.
type Service struct {
	creator Creator
}

// New creates a dispatcher over creator.
func New(creator Creator) *Service {
	return &Service{creator: creator}
}

// CreateBatch creates one instance of kind per element of params.  It
// always returns len(params) outcomes in input order; a failed element
// never prevents the others from being created.
func (s *Service) CreateBatch(ctx context.Context, kind string, params []instance.Parameters) []Outcome {
	ctx, span := tracing.StartSpan(ctx, "fanout.CreateBatch "+kind, tracing.KindProducer)
	span.WithInt("batch.size", len(params))
	defer span.End()

	outcomes := make([]Outcome, len(params))
	failed := 0
	for i, p := range params {
		outcome := &outcomes[i]
		outcome.Index = i
		anInstance, err := s.create(ctx, kind, p)
		if err != nil {
			failed++
			outcome.Err = err
			outcome.Error = err.Error()
			log.Printf("fanout: failed to create %s instance %d/%d: %v", kind, i+1, len(params), err)
			continue
		}
		outcome.Instance = anInstance
		outcome.InstanceID = anInstance.ID
	}
	span.WithInt("batch.failed", failed)
	return outcomes
}

func (s *Service) create(ctx context.Context, kind string, params instance.Parameters) (anInstance *instance.Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create %s instance panicked: %v", kind, r)
		}
	}()
	return s.creator.Create(ctx, kind, params)
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var ret []Outcome
	for _, outcome := range outcomes {
		if !outcome.OK() {
			ret = append(ret, outcome)
		}
	}
	return ret
}
