package lowpower

import (
	"context"
	"time"
)

// FakeSuspender records suspend calls and returns immediately.
type FakeSuspender struct {
	Calls []time.Duration
	Err   error

	// OnSuspend runs inside SuspendFor, e.g. to advance a fake clock or
	// fire an interrupt while "asleep".
	OnSuspend func(d time.Duration)
}

func (f *FakeSuspender) SuspendFor(ctx context.Context, d time.Duration) error {
	f.Calls = append(f.Calls, d)
	if f.OnSuspend != nil {
		f.OnSuspend(d)
	}
	return f.Err
}
