// Package power runs the node's power/occupancy state machine and the sleep
// sequence it drives.
package power

import (
	"context"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

// Clock is the RTC/time driver.
type Clock interface {
	Now() time.Time
	ArmAlarm(at time.Time) error
	IsClockValid() bool
	SuspendWatchdog() error
	ResumeWatchdog() error
	// KeepAlive feeds the watchdog. Called once per tick.
	KeepAlive() error
}

// Sensor is the occupancy sensor driver.
type Sensor interface {
	// Setup configures the sensor. sensitivity is passed through as is.
	Setup(sensitivity int) error
	ReadOccupancySignal() (bool, error)
	// ClearInterruptLatch re-arms the sensor after a high sample.
	ClearInterruptLatch() error
}

// Suspender is the blocking low-power primitive. It returns when d has
// elapsed or a wake interrupt fired, whichever comes first.
type Suspender interface {
	SuspendFor(ctx context.Context, d time.Duration) error
}

// Mailbox is the main-loop side of the wake dispatcher.
type Mailbox interface {
	TakeReason() logic.WakeReason
	Clear()
}

// Persister stores the accumulator.
type Persister interface {
	SaveAccumulator(acc logic.Accumulator) error
	// LoadAccumulator returns the stored counters and whether any existed.
	LoadAccumulator() (logic.Accumulator, bool, error)
}

// Indicator is the status LED.
type Indicator interface {
	Set(on bool) error
}

// Battery reports a low battery.
type Battery interface {
	Low() (bool, error)
}

// PeriodClosed describes an occupancy period folded into the accumulator.
type PeriodClosed struct {
	Start       time.Time
	End         time.Time
	Seconds     int64
	Accumulator logic.Accumulator
}

// Notifier receives the machine's outputs. Calls happen on the main loop and
// must not block for long.
type Notifier interface {
	NotifyTransition(tr logic.Transition)
	NotifyPeriodClosed(p PeriodClosed)
}
