package rtc

import "time"

// FakeClock is a test double for the RTC. Time only moves when the test
// calls Advance or Set, or through the optional OnNow hook.
type FakeClock struct {
	Current time.Time
	Valid   bool

	Alarms         []time.Time
	ArmError       error
	WatchdogError  error
	Suspends       int
	Resumes        int
	KeepAlives     int
	WatchdogActive bool

	// Calls records the order of alarm and watchdog calls.
	Calls []string
}

// NewFakeClock creates a valid clock at start with an active watchdog.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{Current: start, Valid: true, WatchdogActive: true}
}

func (f *FakeClock) Now() time.Time { return f.Current }

// Advance moves the clock forward.
func (f *FakeClock) Advance(d time.Duration) { f.Current = f.Current.Add(d) }

// Set moves the clock to t.
func (f *FakeClock) Set(t time.Time) { f.Current = t }

func (f *FakeClock) IsClockValid() bool { return f.Valid }

func (f *FakeClock) ArmAlarm(at time.Time) error {
	f.Calls = append(f.Calls, "arm")
	if f.ArmError != nil {
		return f.ArmError
	}
	f.Alarms = append(f.Alarms, at)
	return nil
}

func (f *FakeClock) SuspendWatchdog() error {
	f.Suspends++
	f.Calls = append(f.Calls, "suspend-watchdog")
	f.WatchdogActive = false
	return f.WatchdogError
}

func (f *FakeClock) ResumeWatchdog() error {
	f.Resumes++
	f.Calls = append(f.Calls, "resume-watchdog")
	f.WatchdogActive = true
	return nil
}

func (f *FakeClock) KeepAlive() error {
	f.KeepAlives++
	return nil
}
