// Package subject detects changes of observed fingerprints.
//
// CheckAndUpdate is a read-then-conditionally-write over the state store.
// It takes no lease: two concurrent checks of the same key may both report
// a change.  Callers serialise per subject when that matters.
package subject

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/tracing"
)

// Store persists the last fingerprint per subject key.
type Store interface {
	// Get returns the stored value and whether one exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key.
	Put(ctx context.Context, key, value string) error
}

// Detector compares observed fingerprints with stored ones.
type Detector struct {
	store Store
}

// New creates a detector over store.
func New(store Store) *Detector {
	return &Detector{store: store}
}

// CheckAndUpdate reports whether fingerprint differs from the stored value
// for key, or force is set, or nothing is stored yet.  On change the
// fingerprint is persisted before returning.
func (d *Detector) CheckAndUpdate(ctx context.Context, key, fingerprint string, force bool) (changed bool, err error) {
	_, span := tracing.StartSpan(ctx, "subject.CheckAndUpdate", tracing.KindInternal)
	span.WithAttributes(map[string]string{"subject.key": key})
	defer func() { tracing.EndSpan(span, err) }()

	if key == "" {
		return false, fault.Invalid("check subject", fmt.Errorf("subject key is empty"))
	}
	stored, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return false, fault.Persistence("get subject state "+key, err)
	}
	changed = force || !ok || stored != fingerprint
	if !changed {
		return false, nil
	}
	if err := d.store.Put(ctx, key, fingerprint); err != nil {
		return false, fault.Persistence("put subject state "+key, err)
	}
	return true, nil
}

// Get returns the stored fingerprint.
func (d *Detector) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return "", false, fault.Persistence("get subject state "+key, err)
	}
	return value, ok, nil
}

// Put stores value unconditionally; used for cached derived values.
func (d *Detector) Put(ctx context.Context, key, value string) error {
	if err := d.store.Put(ctx, key, value); err != nil {
		return fault.Persistence("put subject state "+key, err)
	}
	return nil
}

// AnyChanged is the OR gate over independent change checks.
func AnyChanged(results ...bool) bool {
	for _, changed := range results {
		if changed {
			return true
		}
	}
	return false
}

// Key builds a subject key, e.g. Key("box", "imageurl") is "box-imageurl".
func Key(subject, field string) string {
	return strings.ToLower(subject) + "-" + field
}
