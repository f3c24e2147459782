package logic

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func newTestDetector(t *testing.T, minutes int) *Detector {
	t.Helper()
	d, err := NewDetector(DebounceFromMinutes(minutes))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestNewDetectorRejectsInvalidWindow(t *testing.T) {
	for _, w := range []int64{0, -1, -60} {
		_, err := NewDetector(DebounceConfig{WindowSeconds: w})
		if !errors.Is(err, ErrInvalidDebounce) {
			t.Errorf("window %d: expected ErrInvalidDebounce, got %v", w, err)
		}
	}
}

func TestNewDetectorInitialState(t *testing.T) {
	d := newTestDetector(t, 1)
	if d.Active() {
		t.Error("new detector should not be active")
	}
	acc := d.Accumulator()
	if acc.NetSeconds != 0 || acc.GrossSeconds != 0 || acc.Dirty {
		t.Errorf("expected zero accumulator, got %+v", acc)
	}
	if d.Debounce().WindowSeconds != 60 {
		t.Errorf("expected window 60s, got %d", d.Debounce().WindowSeconds)
	}
}

func TestPollStartsPeriod(t *testing.T) {
	d := newTestDetector(t, 1)

	if !d.Poll(true, at(5)) {
		t.Fatal("expected active after positive sample")
	}
	p := d.Period()
	if !p.Active {
		t.Error("period should be active")
	}
	if !p.Start.Equal(at(5)) {
		t.Errorf("expected start %v, got %v", at(5), p.Start)
	}
}

func TestPollContinuationKeepsStart(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Poll(true, at(0))
	d.Poll(true, at(30))
	d.Poll(true, at(90))

	if !d.Period().Start.Equal(at(0)) {
		t.Errorf("continuation must not move start, got %v", d.Period().Start)
	}
}

func TestPollNegativeWithoutPeriodIsNoop(t *testing.T) {
	d := newTestDetector(t, 1)
	for i := 0; i < 5; i++ {
		if d.Poll(false, at(i*100)) {
			t.Fatalf("sample %d: expected inactive", i)
		}
	}
	if acc := d.Accumulator(); acc != (Accumulator{}) {
		t.Errorf("expected untouched accumulator, got %+v", acc)
	}
}

func TestPollWithinWindowStaysActive(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Poll(true, at(0))

	// Exactly at the window boundary is still within tolerance.
	for _, sec := range []int{1, 30, 59, 60} {
		if !d.Poll(false, at(sec)) {
			t.Errorf("t=%d: expected still active within window", sec)
		}
	}
	if d.Accumulator().NetSeconds != 0 {
		t.Errorf("no close expected, net=%d", d.Accumulator().NetSeconds)
	}
}

func TestPollClosesAfterWindow(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Poll(true, at(0))

	if d.Poll(false, at(61)) {
		t.Fatal("expected period closed after window")
	}
	acc := d.Accumulator()
	if acc.NetSeconds != 61 {
		t.Errorf("expected net 61, got %d", acc.NetSeconds)
	}
	if acc.GrossSeconds != 62 {
		t.Errorf("expected gross 62, got %d", acc.GrossSeconds)
	}
	if !acc.Dirty {
		t.Error("expected dirty after close")
	}
}

// The window is measured from the period start: a late positive sample does
// not extend it.
func TestPollWindowMeasuredFromStart(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Poll(true, at(0))
	d.Poll(true, at(55)) // last positive sample

	// 6s after the last positive sample, but 61s after start.
	if d.Poll(false, at(61)) {
		t.Fatal("expected close: window runs from start, not last positive")
	}
	if d.Accumulator().NetSeconds != 61 {
		t.Errorf("expected net 61, got %d", d.Accumulator().NetSeconds)
	}
}

func TestScenarioChatterWithinWindow(t *testing.T) {
	d := newTestDetector(t, 1)

	steps := []struct {
		sec    int
		raw    bool
		active bool
	}{
		{0, true, true},
		{10, false, true},
		{20, true, true},
		{70, false, false},
	}
	for _, s := range steps {
		if got := d.Poll(s.raw, at(s.sec)); got != s.active {
			t.Errorf("t=%d raw=%v: active=%v, want %v", s.sec, s.raw, got, s.active)
		}
	}

	acc := d.Accumulator()
	if acc.NetSeconds != 70 {
		t.Errorf("expected net 70, got %d", acc.NetSeconds)
	}
	if acc.GrossSeconds != 71 {
		t.Errorf("expected gross 71, got %d", acc.GrossSeconds)
	}
}

func TestNetEqualsSumOfClosedPeriods(t *testing.T) {
	tests := []struct {
		name    string
		samples []struct {
			sec int
			raw bool
		}
		wantNet int64
	}{
		{
			name: "two clean periods",
			samples: []struct {
				sec int
				raw bool
			}{
				{0, true}, {61, false}, // 61
				{100, true}, {200, false}, // 100
			},
			wantNet: 161,
		},
		{
			name: "heavy chatter",
			samples: []struct {
				sec int
				raw bool
			}{
				{0, true}, {1, false}, {2, true}, {3, false}, {4, true},
				{5, false}, {30, true}, {45, false}, {60, false}, {75, false}, // 75
			},
			wantNet: 75,
		},
		{
			name: "open period not counted",
			samples: []struct {
				sec int
				raw bool
			}{
				{0, true}, {90, false}, // 90
				{100, true}, {120, false}, // still open
			},
			wantNet: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t, 1)
			for _, s := range tt.samples {
				d.Poll(s.raw, at(s.sec))
			}
			if got := d.Accumulator().NetSeconds; got != tt.wantNet {
				t.Errorf("net: got %d, want %d", got, tt.wantNet)
			}
		})
	}
}

func TestGrossOnlyWrittenAtClose(t *testing.T) {
	d := newTestDetector(t, 1)

	d.Poll(true, at(0))
	if d.Accumulator().GrossSeconds != 0 {
		t.Errorf("gross must not move while open, got %d", d.Accumulator().GrossSeconds)
	}
	d.Poll(false, at(80))
	if acc := d.Accumulator(); acc.GrossSeconds != acc.NetSeconds+1 {
		t.Errorf("after close: gross=%d net=%d", acc.GrossSeconds, acc.NetSeconds)
	}

	// A second period opens; gross stays at the previous close value.
	d.Poll(true, at(100))
	d.Poll(false, at(120))
	if d.Accumulator().GrossSeconds != 81 {
		t.Errorf("gross changed while open: %d", d.Accumulator().GrossSeconds)
	}

	d.Poll(false, at(200))
	if acc := d.Accumulator(); acc.NetSeconds != 180 || acc.GrossSeconds != 181 {
		t.Errorf("after second close: %+v", acc)
	}
}

func TestMarkFlushed(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Poll(true, at(0))
	d.Poll(false, at(61))

	d.MarkFlushed()
	acc := d.Accumulator()
	if acc.Dirty {
		t.Error("expected clean after MarkFlushed")
	}
	if acc.NetSeconds != 61 {
		t.Errorf("MarkFlushed must keep counters, net=%d", acc.NetSeconds)
	}
}

// A reset while a period is open loses the partial duration. This is an
// accepted data-loss boundary: only closed periods are ever counted.
func TestResetMidOccupancyLosesPartialPeriod(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Poll(true, at(0))
	d.Poll(false, at(61))
	persisted := d.Accumulator()

	d.Poll(true, at(100)) // open when the node resets

	restarted := newTestDetector(t, 1)
	restarted.Restore(persisted)

	restarted.Poll(false, at(500))
	if got := restarted.Accumulator().NetSeconds; got != 61 {
		t.Errorf("expected only the closed period (61s), got %d", got)
	}
}

func TestRestoreIsClean(t *testing.T) {
	d := newTestDetector(t, 1)
	d.Restore(Accumulator{NetSeconds: 300, GrossSeconds: 301, Dirty: true})

	acc := d.Accumulator()
	if acc.Dirty {
		t.Error("restored counters should not be dirty")
	}
	if acc.NetSeconds != 300 || acc.GrossSeconds != 301 {
		t.Errorf("unexpected restored counters: %+v", acc)
	}

	d.Poll(true, at(0))
	d.Poll(false, at(100))
	if acc := d.Accumulator(); acc.NetSeconds != 400 || acc.GrossSeconds != 401 {
		t.Errorf("expected accumulation on top of restored value, got %+v", acc)
	}
}

func TestSetDebounce(t *testing.T) {
	d := newTestDetector(t, 1)

	if err := d.SetDebounce(DebounceConfig{}); !errors.Is(err, ErrInvalidDebounce) {
		t.Errorf("expected ErrInvalidDebounce, got %v", err)
	}
	if d.Debounce().WindowSeconds != 60 {
		t.Error("invalid update must not change the window")
	}

	if err := d.SetDebounce(DebounceFromMinutes(5)); err != nil {
		t.Fatalf("SetDebounce: %v", err)
	}

	d.Poll(true, at(0))
	if !d.Poll(false, at(200)) {
		t.Error("expected active within the new 300s window")
	}
	if d.Poll(false, at(301)) {
		t.Error("expected close after the new window")
	}
}

func TestElapsedSecondsIgnoresSubSecond(t *testing.T) {
	from := t0.Add(900 * time.Millisecond)
	to := t0.Add(1100 * time.Millisecond)
	if got := ElapsedSeconds(from, to); got != 1 {
		t.Errorf("expected 1 whole RTC second, got %d", got)
	}
}

func TestWakeReasonString(t *testing.T) {
	want := map[WakeReason]string{
		WakeNone:        "NONE",
		WakeTimerAlarm:  "TIMER_ALARM",
		WakeUserInput:   "USER_INPUT",
		WakeSensorEvent: "SENSOR_EVENT",
		WakeReason(42):  "UNKNOWN",
	}
	for r, s := range want {
		if r.String() != s {
			t.Errorf("%d: got %q, want %q", r, r.String(), s)
		}
	}
}

func TestSleepPlanDuration(t *testing.T) {
	p := SleepPlan{WakeAt: at(60), DurationSeconds: 60}
	if p.Duration() != time.Minute {
		t.Errorf("expected 1m, got %v", p.Duration())
	}
}
