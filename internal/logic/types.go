// Package logic contains pure business logic for occupancy tracking.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"time"
)

// WakeReason identifies the interrupt credited with ending a sleep.
// The underlying uint32 is what the wake mailbox stores atomically.
type WakeReason uint32

const (
	WakeNone WakeReason = iota
	WakeTimerAlarm
	WakeUserInput
	WakeSensorEvent
)

func (r WakeReason) String() string {
	switch r {
	case WakeNone:
		return "NONE"
	case WakeTimerAlarm:
		return "TIMER_ALARM"
	case WakeUserInput:
		return "USER_INPUT"
	case WakeSensorEvent:
		return "SENSOR_EVENT"
	}
	return "UNKNOWN"
}

// WakeReasons lists every reason in declaration order.
var WakeReasons = []WakeReason{WakeNone, WakeTimerAlarm, WakeUserInput, WakeSensorEvent}

// PowerState is a state of the power state machine.
type PowerState string

const (
	StateIdle       PowerState = "IDLE"
	StateSleeping   PowerState = "SLEEPING"
	StateLowBattery PowerState = "LOW_BATTERY"
	StateError      PowerState = "ERROR"
)

// PowerStates lists every state, Idle first.
var PowerStates = []PowerState{StateIdle, StateSleeping, StateLowBattery, StateError}

// Transition is emitted once for every state edge.
type Transition struct {
	From PowerState
	To   PowerState
	Time time.Time
}

// OccupancyPeriod is the period currently being tracked.
type OccupancyPeriod struct {
	Start  time.Time
	Active bool
}

// Accumulator holds the occupied-seconds counters for the session.
type Accumulator struct {
	NetSeconds int64
	// GrossSeconds is always NetSeconds+1 after a close. It is a check value
	// for persistence round trips, not a measurement.
	GrossSeconds int64
	// Dirty is set on every close and cleared once persisted.
	Dirty bool
}

// DebounceConfig controls when an active period is closed.
type DebounceConfig struct {
	WindowSeconds int64
}

// ErrInvalidDebounce is returned for a non-positive debounce window.
var ErrInvalidDebounce = errors.New("debounce window must be positive")

// DebounceFromMinutes builds a DebounceConfig from the configured minutes.
func DebounceFromMinutes(min int) DebounceConfig {
	return DebounceConfig{WindowSeconds: int64(min) * 60}
}

// Validate checks the window is positive.
func (c DebounceConfig) Validate() error {
	if c.WindowSeconds <= 0 {
		return ErrInvalidDebounce
	}
	return nil
}

// SleepPlan describes a single sleep.
type SleepPlan struct {
	WakeAt          time.Time
	DurationSeconds int64
}

// Duration returns the plan's length as a time.Duration.
func (p SleepPlan) Duration() time.Duration {
	return time.Duration(p.DurationSeconds) * time.Second
}

// ElapsedSeconds returns whole seconds between two RTC readings.
// Computed from Unix seconds so that a monotonic reading, which stops across
// a kernel suspend, never takes part.
func ElapsedSeconds(from, to time.Time) int64 {
	return to.Unix() - from.Unix()
}
