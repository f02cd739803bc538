package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{name: "nil", err: nil, kind: "", retryable: false},
		{name: "plain", err: errors.New("boom"), kind: KindUnknown, retryable: true},
		{name: "fetch", err: Fetch("get page", errors.New("status 503")), kind: KindFetch, retryable: true},
		{name: "wrapped fetch", err: fmt.Errorf("step: %w", Fetch("get page", context.DeadlineExceeded)), kind: KindFetch, retryable: true},
		{name: "missing field", err: MissingField("head image", "last-modified header"), kind: KindMissingField, retryable: false},
		{name: "persistence", err: Persistence("put step", errors.New("disk full")), kind: KindPersistence, retryable: true},
		{name: "invalid", err: Invalid("decode", errors.New("bad json")), kind: KindInvalid, retryable: false},
		{name: "cancelled", err: Cancelled("office/1"), kind: KindCancelled, retryable: false},
		{name: "run failure", err: &RunFailure{InstanceID: "i", Step: "s", Attempts: 3, Err: Fetch("x", errors.New("y"))}, kind: KindRun, retryable: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.retryable, Retryable(tc.err))
		})
	}
}

func TestRunFailure(t *testing.T) {
	cause := MissingField("head image", "last-modified header")
	failure := &RunFailure{InstanceID: "office/1", Step: "Fetch last-modified", Attempts: 1, Err: cause}
	assert.Equal(t, KindMissingField, failure.Cause())
	assert.ErrorIs(t, failure, cause)
	assert.Contains(t, failure.Error(), `step "Fetch last-modified" failed after 1 attempt(s)`)
	assert.Equal(t, KindUnknown, (&RunFailure{Err: errors.New("x")}).Cause())
}
