package clock

import (
	"context"
	"time"
)

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// SleepFunc blocks for d or until ctx is done. Override in tests to skip
// retry backoff.
var SleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Sleep is a thin wrapper around SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error { return SleepFunc(ctx, d) }
