package dao

import (
	"context"
)

// Service is a keyed store of records such as instances.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	// Update loads the record, applies fn and saves the result.  Updates on
	// the same store are serialised, so two writers flipping different
	// fields never lose each other's change.  When fn returns an error
	// nothing is saved.
	Update(ctx context.Context, id K, fn func(t *T) error) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
