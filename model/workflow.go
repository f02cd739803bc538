package model

import (
	"fmt"
	"time"

	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/model/step"
)

// Workflow is a named, ordered list of steps.  Every instance of the kind
// runs the same steps in the same order.
type Workflow struct {
	// Kind identifies the workflow; instance ids are prefixed with it.
	Kind        string      `json:"kind" yaml:"kind"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []step.Step `json:"-" yaml:"-"`
	// Parameters, when set, rejects malformed instance parameters at creation.
	Parameters func(params instance.Parameters) error `json:"-" yaml:"-"`
}

// NewWorkflow creates an empty workflow of kind.
func NewWorkflow(kind string) *Workflow {
	return &Workflow{Kind: kind}
}

// WithStep appends a step.
func (w *Workflow) WithStep(name string, fn step.Func) *Workflow {
	w.Steps = append(w.Steps, step.Step{Name: name, Run: fn})
	return w
}

// WithRetry overrides the retry policy of the last added step.
func (w *Workflow) WithRetry(retry *step.Retry) *Workflow {
	if n := len(w.Steps); n > 0 {
		w.Steps[n-1].Retry = retry
	}
	return w
}

// WithTimeout overrides the attempt timeout of the last added step.
func (w *Workflow) WithTimeout(timeout time.Duration) *Workflow {
	if n := len(w.Steps); n > 0 {
		w.Steps[n-1].Timeout = timeout
	}
	return w
}

// WithValidator sets the parameter validator.
func (w *Workflow) WithValidator(fn func(params instance.Parameters) error) *Workflow {
	w.Parameters = fn
	return w
}

// ValidateParameters applies the parameter validator if any.
func (w *Workflow) ValidateParameters(params instance.Parameters) error {
	if w.Parameters == nil {
		return nil
	}
	return w.Parameters(params)
}

// Validate performs a structural check of the workflow.  The returned slice
// is empty when the workflow is sound.
func (w *Workflow) Validate() []error {
	var issues []error
	if w.Kind == "" {
		issues = append(issues, fmt.Errorf("workflow kind is empty"))
	}
	if len(w.Steps) == 0 {
		issues = append(issues, fmt.Errorf("workflow %s has no steps", w.Kind))
	}
	seen := map[string]bool{}
	for i, s := range w.Steps {
		if s.Name == "" {
			issues = append(issues, fmt.Errorf("workflow %s: step %d has no name", w.Kind, i))
			continue
		}
		if seen[s.Name] {
			issues = append(issues, fmt.Errorf("workflow %s: duplicate step %q", w.Kind, s.Name))
		}
		seen[s.Name] = true
		if s.Run == nil {
			issues = append(issues, fmt.Errorf("workflow %s: step %q has no body", w.Kind, s.Name))
		}
		if s.Retry != nil && s.Retry.MaxAttempts < 0 {
			issues = append(issues, fmt.Errorf("workflow %s: step %q has negative max attempts", w.Kind, s.Name))
		}
	}
	return issues
}
