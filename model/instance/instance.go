package instance

import (
	"context"
	"time"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/model/fault"
)

// State represents the lifecycle state of an instance.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the state can no longer change.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Instance represents one execution of a workflow kind.
type Instance struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parentId,omitempty"`
	Kind       string     `json:"kind"`
	Parameters Parameters `json:"parameters,omitempty"`
	State      State      `json:"state"`
	LastStep   string     `json:"lastStep,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  fault.Kind `json:"errorKind,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Ref is the unit of work handed from the registry to its workers.
type Ref struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Status is the operator-facing view of an instance.
type Status struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	State     State      `json:"status"`
	LastStep  string     `json:"lastStep,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind fault.Kind `json:"errorKind,omitempty"`
}

// New creates a pending instance.
func New(id, kind string, parameters Parameters) *Instance {
	now := clock.Now()
	return &Instance{
		ID:         id,
		Kind:       kind,
		Parameters: parameters.Clone(),
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Ref returns the work reference of the instance.
func (i *Instance) Ref() *Ref {
	return &Ref{ID: i.ID, Kind: i.Kind}
}

// Status returns the operator-facing view.
func (i *Instance) Status() *Status {
	return &Status{
		ID:        i.ID,
		Kind:      i.Kind,
		State:     i.State,
		LastStep:  i.LastStep,
		Error:     i.Error,
		ErrorKind: i.ErrorKind,
	}
}

// Start moves a pending instance to running.
func (i *Instance) Start() {
	if i.State.IsTerminal() {
		return
	}
	i.State = StateRunning
	i.UpdatedAt = clock.Now()
}

// Progress records the last step the instance completed.
func (i *Instance) Progress(stepName string) {
	if i.State.IsTerminal() {
		return
	}
	i.LastStep = stepName
	i.UpdatedAt = clock.Now()
}

// Complete marks the instance completed.
func (i *Instance) Complete() {
	if i.State.IsTerminal() {
		return
	}
	now := clock.Now()
	i.State = StateCompleted
	i.UpdatedAt = now
	i.FinishedAt = &now
}

// Fail marks the instance failed and records the cause.
func (i *Instance) Fail(stepName string, err error) {
	if i.State.IsTerminal() {
		return
	}
	now := clock.Now()
	i.State = StateFailed
	i.UpdatedAt = now
	i.FinishedAt = &now
	if stepName != "" {
		i.LastStep = stepName
	}
	if err != nil {
		i.Error = err.Error()
		if failure, ok := err.(*fault.RunFailure); ok {
			i.ErrorKind = failure.Cause()
		} else {
			i.ErrorKind = fault.KindOf(err)
		}
	}
}

// Clone returns a copy safe to mutate independently.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Parameters = i.Parameters.Clone()
	if i.FinishedAt != nil {
		finished := *i.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}

type contextKey struct{}

// WithContext returns a context carrying the running instance.
func WithContext(ctx context.Context, i *Instance) context.Context {
	return context.WithValue(ctx, contextKey{}, i)
}

// FromContext returns the running instance from ctx or nil.
func FromContext(ctx context.Context) *Instance {
	if ctx == nil {
		return nil
	}
	if i, ok := ctx.Value(contextKey{}).(*Instance); ok {
		return i
	}
	return nil
}
