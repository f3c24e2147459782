package power

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/diag"
	"github.com/sweeney/occupancy-sensor/internal/lowpower"
	"github.com/sweeney/occupancy-sensor/internal/rtc"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func equalCalls(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlanSleep(t *testing.T) {
	s := NewScheduler(rtc.NewFakeClock(t0), &lowpower.FakeSuspender{}, nil, 0)

	tests := []struct {
		name    string
		min     int64
		wantSec int64
	}{
		{"default for zero", 0, DefaultSleepSeconds},
		{"default for negative", -5, DefaultSleepSeconds},
		{"explicit", 120, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.PlanSleep(t0, tt.min)
			if p.DurationSeconds != tt.wantSec {
				t.Errorf("duration: got %d, want %d", p.DurationSeconds, tt.wantSec)
			}
			if !p.WakeAt.Equal(t0.Add(time.Duration(tt.wantSec) * time.Second)) {
				t.Errorf("wake at: got %v", p.WakeAt)
			}
		})
	}
}

func TestNewSchedulerDefaultWakeTimeout(t *testing.T) {
	s := NewScheduler(rtc.NewFakeClock(t0), &lowpower.FakeSuspender{}, nil, 0)
	if s.wakeTimeout != DefaultWakeTimeout {
		t.Errorf("expected %v, got %v", DefaultWakeTimeout, s.wakeTimeout)
	}
}

func TestEnterSleepSequence(t *testing.T) {
	clock := rtc.NewFakeClock(t0)
	ch := diag.NewFakeChannel()
	susp := &lowpower.FakeSuspender{}
	s := NewScheduler(clock, susp, ch, time.Second)

	plan := s.PlanSleep(t0, 60)
	if err := s.EnterSleep(context.Background(), plan); err != nil {
		t.Fatalf("EnterSleep: %v", err)
	}

	if want := []string{"suspend-watchdog", "arm", "resume-watchdog"}; !equalCalls(clock.Calls, want) {
		t.Errorf("clock calls: got %v, want %v", clock.Calls, want)
	}
	if want := []string{"flush", "close", "open"}; !equalCalls(ch.Calls, want) {
		t.Errorf("channel calls: got %v, want %v", ch.Calls, want)
	}
	if len(clock.Alarms) != 1 || !clock.Alarms[0].Equal(plan.WakeAt) {
		t.Errorf("unexpected alarms: %v", clock.Alarms)
	}
	if len(susp.Calls) != 1 || susp.Calls[0] != 61*time.Second {
		t.Errorf("expected one 61s suspend, got %v", susp.Calls)
	}
	if !clock.WatchdogActive {
		t.Error("watchdog should be active after wake")
	}
}

func TestEnterSleepResumesWatchdogOnFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(clock *rtc.FakeClock, susp *lowpower.FakeSuspender)
	}{
		{"alarm fails", func(c *rtc.FakeClock, _ *lowpower.FakeSuspender) { c.ArmError = errors.New("rtc busy") }},
		{"suspend fails", func(_ *rtc.FakeClock, s *lowpower.FakeSuspender) { s.Err = errors.New("EBUSY") }},
		{"watchdog suspend fails", func(c *rtc.FakeClock, _ *lowpower.FakeSuspender) { c.WatchdogError = errors.New("EIO") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := rtc.NewFakeClock(t0)
			susp := &lowpower.FakeSuspender{}
			tt.setup(clock, susp)
			s := NewScheduler(clock, susp, diag.NewFakeChannel(), time.Second)

			if err := s.EnterSleep(context.Background(), s.PlanSleep(t0, 60)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if clock.Resumes != 1 {
				t.Errorf("expected watchdog resumed exactly once, got %d", clock.Resumes)
			}
			if len(susp.Calls) != 1 {
				t.Errorf("expected suspend to run, got %d calls", len(susp.Calls))
			}
		})
	}
}

func TestEnterSleepWakeTimeout(t *testing.T) {
	clock := rtc.NewFakeClock(t0)
	ch := diag.NewFakeChannel()
	ch.ReadyOnOpen = false
	s := NewScheduler(clock, &lowpower.FakeSuspender{}, ch, 50*time.Millisecond)

	start := time.Now()
	err := s.EnterSleep(context.Background(), s.PlanSleep(t0, 60))
	if !errors.Is(err, ErrWakeTimeout) {
		t.Fatalf("expected ErrWakeTimeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("wake timeout not bounded: took %v", time.Since(start))
	}
	if clock.Resumes != 1 {
		t.Errorf("watchdog must be resumed after a wake timeout, got %d", clock.Resumes)
	}
}

func TestEnterSleepCancelled(t *testing.T) {
	clock := rtc.NewFakeClock(t0)
	ch := diag.NewFakeChannel()
	ch.ReadyOnOpen = false
	s := NewScheduler(clock, &lowpower.FakeSuspender{}, ch, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.EnterSleep(ctx, s.PlanSleep(t0, 60))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEnterSleepWithoutChannel(t *testing.T) {
	clock := rtc.NewFakeClock(t0)
	s := NewScheduler(clock, &lowpower.FakeSuspender{}, nil, time.Second)
	if err := s.EnterSleep(context.Background(), s.PlanSleep(t0, 60)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
