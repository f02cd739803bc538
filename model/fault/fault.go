// Package fault defines the error taxonomy shared by the runner, the stores
// and the workflow steps.  Every failure that crosses a package boundary is
// either a *Error carrying a Kind or a *RunFailure wrapping one, so callers
// can branch with errors.As / KindOf instead of matching strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindFetch covers non-2xx responses, timeouts and transport errors of remote calls.
	KindFetch Kind = "fetch"
	// KindMissingField is returned when an expected value (e.g. a header) is absent.
	KindMissingField Kind = "missingField"
	// KindPersistence covers step, subject and instance store failures.
	KindPersistence Kind = "persistence"
	// KindDelivery is a per-destination notification failure.
	KindDelivery Kind = "delivery"
	// KindRun marks an exhausted retry budget.
	KindRun Kind = "run"
	// KindCancelled marks an instance that was cancelled before a step started.
	KindCancelled Kind = "cancelled"
	// KindInvalid covers malformed input that no retry can fix.
	KindInvalid Kind = "invalid"
	// KindUnknown is reported for errors without classification.
	KindUnknown Kind = "unknown"
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + string(e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fetch wraps a remote call failure.
func Fetch(op string, err error) error { return New(KindFetch, op, err) }

// MissingField reports an absent expected value.
func MissingField(op, field string) error {
	return New(KindMissingField, op, fmt.Errorf("missing %s", field))
}

// Persistence wraps a store failure.
func Persistence(op string, err error) error { return New(KindPersistence, op, err) }

// Delivery wraps a destination failure.
func Delivery(destination string, err error) error {
	return New(KindDelivery, "deliver "+destination, err)
}

// Invalid wraps an input failure.
func Invalid(op string, err error) error { return New(KindInvalid, op, err) }

// Cancelled reports a cancelled instance.
func Cancelled(instanceID string) error {
	return New(KindCancelled, "instance "+instanceID, errors.New("cancelled"))
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var run *RunFailure
	if errors.As(err, &run) {
		return KindRun
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// Retryable reports whether repeating the failed operation may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindMissingField, KindInvalid, KindCancelled, KindRun:
		return false
	}
	return err != nil
}

// RunFailure is surfaced when a step cannot complete: the retry budget is
// exhausted or the failure is not retryable.
type RunFailure struct {
	InstanceID string
	Step       string
	Attempts   int
	Err        error
}

func (f *RunFailure) Error() string {
	return fmt.Sprintf("instance %s: step %q failed after %d attempt(s): %v", f.InstanceID, f.Step, f.Attempts, f.Err)
}

func (f *RunFailure) Unwrap() error { return f.Err }

// Cause returns the kind of the underlying failure.
func (f *RunFailure) Cause() Kind {
	if f == nil || f.Err == nil {
		return ""
	}
	var classified *Error
	if errors.As(f.Err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}
