package power

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sweeney/occupancy-sensor/internal/diag"
	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/logic"
)

const (
	// DefaultSleepSeconds is the sleep quantum.
	DefaultSleepSeconds = 60
	// DefaultWakeTimeout bounds the wait for the diagnostics channel after wake.
	DefaultWakeTimeout = 5 * time.Second
	// sleepGuard is added to the suspend so the RTC alarm fires first.
	sleepGuard = time.Second
)

// ErrWakeTimeout is returned when the diagnostics channel was not ready
// within the wake timeout. The sleep itself completed.
var ErrWakeTimeout = errors.New("diagnostics channel not ready after wake")

var errNotReady = errors.New("not ready")

// Scheduler plans sleeps and runs the suspend sequence.
type Scheduler struct {
	clock       Clock
	suspender   Suspender
	channel     diag.Channel
	wakeTimeout time.Duration
}

// NewScheduler creates a scheduler. channel may be nil; wakeTimeout <= 0
// selects DefaultWakeTimeout.
func NewScheduler(clock Clock, suspender Suspender, channel diag.Channel, wakeTimeout time.Duration) *Scheduler {
	if wakeTimeout <= 0 {
		wakeTimeout = DefaultWakeTimeout
	}
	return &Scheduler{
		clock:       clock,
		suspender:   suspender,
		channel:     channel,
		wakeTimeout: wakeTimeout,
	}
}

// PlanSleep returns a plan for a fixed sleep of minSleepSeconds
// (DefaultSleepSeconds when not positive).
func (s *Scheduler) PlanSleep(now time.Time, minSleepSeconds int64) logic.SleepPlan {
	if minSleepSeconds <= 0 {
		minSleepSeconds = DefaultSleepSeconds
	}
	return logic.SleepPlan{
		WakeAt:          now.Add(time.Duration(minSleepSeconds) * time.Second),
		DurationSeconds: minSleepSeconds,
	}
}

// EnterSleep suspends the watchdog and the diagnostics channel, arms the wake
// alarm and blocks in the low-power primitive. On return the channel is
// reopened and the watchdog resumed, on every path.
//
// A failed alarm is logged and the suspender's own timeout takes over. The
// only error returned is ErrWakeTimeout (or the context's error during
// shutdown), and it is reported after the sequence has completed.
func (s *Scheduler) EnterSleep(ctx context.Context, plan logic.SleepPlan) error {
	if err := s.clock.SuspendWatchdog(); err != nil {
		log.Warnf("sleep: %v", err)
	}
	defer func() {
		if err := s.clock.ResumeWatchdog(); err != nil {
			log.Errorf("wake: %v", err)
		}
	}()

	if s.channel != nil {
		if err := s.channel.Flush(); err != nil {
			log.Warnf("sleep: flush diagnostics: %v", err)
		}
		if err := s.channel.Close(); err != nil {
			log.Warnf("sleep: close diagnostics: %v", err)
		}
	}

	if err := s.clock.ArmAlarm(plan.WakeAt); err != nil {
		log.Warnf("sleep: arm wake alarm for %d: %v (falling back to suspend timeout)", plan.WakeAt.Unix(), err)
	}

	if err := s.suspender.SuspendFor(ctx, plan.Duration()+sleepGuard); err != nil {
		log.Warnf("sleep: suspend: %v", err)
	}

	return s.reopen(ctx)
}

func (s *Scheduler) reopen(ctx context.Context) error {
	if s.channel == nil {
		return nil
	}
	if err := s.channel.Open(); err != nil {
		log.Warnf("wake: open diagnostics: %v", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = s.wakeTimeout

	err := backoff.Retry(func() error {
		if s.channel.IsReady() {
			return nil
		}
		return errNotReady
	}, backoff.WithContext(bo, ctx))
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return fmt.Errorf("%w (waited %v)", ErrWakeTimeout, s.wakeTimeout)
}
