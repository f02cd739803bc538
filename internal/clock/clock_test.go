package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleep(t *testing.T) {
	testCases := []struct {
		name      string
		delay     time.Duration
		cancelled bool
		expectErr bool
	}{
		{name: "zero delay", delay: 0},
		{name: "short delay", delay: time.Millisecond},
		{name: "cancelled context", delay: time.Minute, cancelled: true, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			if tc.cancelled {
				cancel()
			} else {
				defer cancel()
			}
			err := Sleep(ctx, tc.delay)
			if tc.expectErr {
				assert.ErrorIs(t, err, context.Canceled)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNow(t *testing.T) {
	fixed := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	NowFunc = func() time.Time { return fixed }
	defer func() { NowFunc = time.Now }()
	assert.Equal(t, fixed, Now())
}
