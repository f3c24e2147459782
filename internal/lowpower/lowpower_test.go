package lowpower

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTimerElapses(t *testing.T) {
	tm := NewTimer(nil)
	start := time.Now()
	if err := tm.SuspendFor(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("SuspendFor: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before the duration elapsed")
	}
}

func TestTimerWokenEarly(t *testing.T) {
	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	tm := NewTimer(wake)

	start := time.Now()
	if err := tm.SuspendFor(context.Background(), time.Minute); err != nil {
		t.Fatalf("SuspendFor: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("wake token did not end the sleep")
	}
}

func TestTimerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTimer(nil).SuspendFor(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type fakeAlarm struct {
	pending bool
	armed   []time.Duration
}

func (a *fakeAlarm) AlarmPending() bool { return a.pending }

func (a *fakeAlarm) ArmAlarmAfter(d time.Duration) error {
	a.armed = append(a.armed, d)
	return nil
}

func writeState(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestKernelUnsupportedMode(t *testing.T) {
	p := writeState(t, "freeze mem\n")
	if _, err := newKernel("disk", p, nil); err == nil {
		t.Error("expected error for unsupported mode")
	}
}

func TestKernelArmsFallbackAlarm(t *testing.T) {
	p := writeState(t, "freeze mem\n")
	alarm := &fakeAlarm{}
	k, err := newKernel("freeze", p, alarm)
	if err != nil {
		t.Fatalf("newKernel: %v", err)
	}

	if err := k.SuspendFor(context.Background(), 61*time.Second); err != nil {
		t.Fatalf("SuspendFor: %v", err)
	}
	if len(alarm.armed) != 1 || alarm.armed[0] != 61*time.Second {
		t.Errorf("expected fallback alarm of 61s, got %v", alarm.armed)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "freeze" {
		t.Errorf("state write: got %q", data)
	}
}

func TestKernelKeepsPendingAlarm(t *testing.T) {
	p := writeState(t, "mem\n")
	alarm := &fakeAlarm{pending: true}
	k, err := newKernel("mem", p, alarm)
	if err != nil {
		t.Fatalf("newKernel: %v", err)
	}
	if err := k.SuspendFor(context.Background(), time.Minute); err != nil {
		t.Fatalf("SuspendFor: %v", err)
	}
	if len(alarm.armed) != 0 {
		t.Error("a pending alarm must not be overwritten")
	}
}
