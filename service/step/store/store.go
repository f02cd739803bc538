// Package store defines persistence of completed step records.
//
// A record, once written, is never replaced: Put on an existing
// (instanceID, name) key is a no-op, so a replayed or duplicated write can
// not corrupt the result the runner already observed.
package store

import (
	"context"

	"github.com/viant/stepflow/model/step"
)

// Store persists step records keyed by instance id and step name.
type Store interface {
	// Get returns the record or nil when the step has not completed.
	Get(ctx context.Context, instanceID, name string) (*step.Record, error)
	// Put persists record unless one already exists for its key.
	Put(ctx context.Context, record *step.Record) error
}
