// Package lowpower provides the blocking low-power primitive used while the
// node sleeps.
package lowpower

import (
	"context"
	"time"
)

// Timer waits for the duration without suspending the kernel. It returns
// early when a wake token arrives, which is how GPIO interrupts end a sleep
// on hosts that cannot suspend.
type Timer struct {
	wake <-chan struct{}
}

// NewTimer creates a Timer woken by tokens on wake. A nil channel never wakes.
func NewTimer(wake <-chan struct{}) *Timer {
	return &Timer{wake: wake}
}

// SuspendFor blocks until d elapses, a wake token arrives or ctx is done.
func (t *Timer) SuspendFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-t.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
