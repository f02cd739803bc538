// Package step defines the unit of durable work: a named body, its persisted
// record and the Flow threaded from one step's output to the next step's
// input.
package step

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/viant/stepflow/model/fault"
)

// Func is a step body.  It receives the accumulated flow and returns a
// JSON-serialisable result.
type Func func(ctx context.Context, flow *Flow) (interface{}, error)

// Step is a named body executed at most once per instance.
type Step struct {
	// Name identifies the step within its instance; order is significant.
	Name string
	// Retry overrides the runner retry policy when set.
	Retry *Retry
	// Timeout overrides the runner per-attempt timeout when > 0.
	Timeout time.Duration
	Run     Func
}

// Retry controls how a failed body is re-attempted.  Zero values fall back
// to the runner configuration.
type Retry struct {
	// MaxAttempts counts the first attempt; 1 disables retries.
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Record is the persisted outcome of a completed step.
type Record struct {
	InstanceID  string          `json:"instanceId"`
	Name        string          `json:"name"`
	Result      json.RawMessage `json:"result,omitempty"`
	Stop        bool            `json:"stop,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
}

type stopSignal struct {
	result interface{}
}

func (s *stopSignal) Error() string { return "step: stop remaining steps" }

// Stop is returned by a body to complete successfully with result and skip
// all remaining steps of the instance.
func Stop(result interface{}) error {
	return &stopSignal{result: result}
}

// IsStop reports whether err is a Stop signal and returns its result.
func IsStop(err error) (interface{}, bool) {
	var signal *stopSignal
	if errors.As(err, &signal) {
		return signal.result, true
	}
	return nil, false
}

// Permanent marks err as not retryable; the runner fails the instance on
// the first attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fault.New(fault.KindInvalid, "", err)
}
