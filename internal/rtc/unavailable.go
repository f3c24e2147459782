package rtc

import (
	"fmt"
	"time"
)

// Unavailable stands in for an RTC that could not be opened. It never has a
// valid time, so the state machine's setup fails and the node stays in the
// error state. Err is the open failure.
type Unavailable struct {
	Err error
}

func (u Unavailable) Now() time.Time { return time.Time{} }

func (u Unavailable) IsClockValid() bool { return false }

func (u Unavailable) ArmAlarm(time.Time) error { return u.err() }

func (u Unavailable) AlarmPending() bool { return false }

func (u Unavailable) ArmAlarmAfter(time.Duration) error { return u.err() }

func (u Unavailable) SuspendWatchdog() error { return nil }

func (u Unavailable) ResumeWatchdog() error { return nil }

func (u Unavailable) KeepAlive() error { return nil }

func (u Unavailable) Close() error { return nil }

func (u Unavailable) err() error {
	return fmt.Errorf("rtc unavailable: %w", u.Err)
}
