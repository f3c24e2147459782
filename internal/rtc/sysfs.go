package rtc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sysfs drives an RTC through /sys/class/rtc/<name> and the watchdog through
// its character device.
type Sysfs struct {
	dir          string
	watchdogPath string

	mu       sync.Mutex
	watchdog *os.File
}

// NewSysfs opens the named RTC (e.g. "rtc0") and, when watchdogPath is not
// empty, arms the watchdog.
func NewSysfs(name, watchdogPath string) (*Sysfs, error) {
	return newSysfs(filepath.Join("/sys/class/rtc", name), watchdogPath)
}

func newSysfs(dir, watchdogPath string) (*Sysfs, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("rtc %s: %w", dir, err)
	}
	s := &Sysfs{dir: dir, watchdogPath: watchdogPath}
	if err := s.ResumeWatchdog(); err != nil {
		return nil, err
	}
	return s, nil
}

// Now returns the RTC time, truncated to whole seconds. A read failure
// returns the zero time, which IsClockValid rejects.
func (s *Sysfs) Now() time.Time {
	t, err := s.read()
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Sysfs) read() (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "since_epoch"))
	if err != nil {
		return time.Time{}, fmt.Errorf("read rtc time: %w", err)
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse rtc time: %w", err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// IsClockValid reports whether the RTC is readable and has been set.
func (s *Sysfs) IsClockValid() bool {
	t, err := s.read()
	if err != nil {
		return false
	}
	return !t.Before(MinValidTime)
}

// ArmAlarm programs the RTC wake alarm. The kernel refuses to overwrite a
// pending alarm, so it is cleared first.
func (s *Sysfs) ArmAlarm(at time.Time) error {
	path := filepath.Join(s.dir, "wakealarm")
	if err := os.WriteFile(path, []byte("0"), 0); err != nil {
		return fmt.Errorf("clear wake alarm: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.FormatInt(at.Unix(), 10)), 0); err != nil {
		return fmt.Errorf("set wake alarm: %w", err)
	}
	return nil
}

// AlarmPending reports whether a wake alarm is set.
func (s *Sysfs) AlarmPending() bool {
	data, err := os.ReadFile(filepath.Join(s.dir, "wakealarm"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) != ""
}

// ArmAlarmAfter programs a relative wake alarm.
func (s *Sysfs) ArmAlarmAfter(d time.Duration) error {
	path := filepath.Join(s.dir, "wakealarm")
	secs := int64(d / time.Second)
	if err := os.WriteFile(path, []byte("+"+strconv.FormatInt(secs, 10)), 0); err != nil {
		return fmt.Errorf("set relative wake alarm: %w", err)
	}
	return nil
}

// SuspendWatchdog disarms the watchdog using the magic close.
func (s *Sysfs) SuspendWatchdog() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchdog == nil {
		return nil
	}
	_, werr := s.watchdog.Write([]byte("V"))
	cerr := s.watchdog.Close()
	s.watchdog = nil
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("suspend watchdog: %w", err)
	}
	return nil
}

// ResumeWatchdog re-arms the watchdog by reopening its device.
func (s *Sysfs) ResumeWatchdog() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchdogPath == "" || s.watchdog != nil {
		return nil
	}
	f, err := os.OpenFile(s.watchdogPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("resume watchdog: %w", err)
	}
	s.watchdog = f
	return nil
}

// KeepAlive feeds the watchdog.
func (s *Sysfs) KeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchdog == nil {
		return nil
	}
	if _, err := s.watchdog.Write([]byte{0}); err != nil {
		return fmt.Errorf("feed watchdog: %w", err)
	}
	return nil
}

// Close disarms the watchdog so a clean shutdown does not trigger a reset.
func (s *Sysfs) Close() error {
	return s.SuspendWatchdog()
}
