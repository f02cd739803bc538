package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier as string. It is exposed
// as a variable so tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// For returns an identifier scoped by kind, e.g. "office/7c9e6679-...".
func For(kind string) string {
	if kind == "" {
		return New()
	}
	return kind + "/" + New()
}
