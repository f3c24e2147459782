package wake

import (
	"sync"
	"testing"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

func TestTakeReasonEmpty(t *testing.T) {
	d := NewDispatcher()
	if r := d.TakeReason(); r != logic.WakeNone {
		t.Errorf("expected NONE, got %s", r)
	}
}

func TestTakeReasonDrains(t *testing.T) {
	d := NewDispatcher()
	d.Signal(logic.WakeSensorEvent)

	if r := d.TakeReason(); r != logic.WakeSensorEvent {
		t.Errorf("first take: expected SENSOR_EVENT, got %s", r)
	}
	if r := d.TakeReason(); r != logic.WakeNone {
		t.Errorf("second take: expected NONE, got %s", r)
	}
}

func TestSignalLastWriteWins(t *testing.T) {
	d := NewDispatcher()
	d.Signal(logic.WakeSensorEvent)
	d.Signal(logic.WakeUserInput)
	d.Signal(logic.WakeTimerAlarm)

	if r := d.TakeReason(); r != logic.WakeTimerAlarm {
		t.Errorf("expected TIMER_ALARM, got %s", r)
	}
}

func TestSignalPostsSingleWakeToken(t *testing.T) {
	d := NewDispatcher()
	d.Signal(logic.WakeSensorEvent)
	d.Signal(logic.WakeSensorEvent) // must not block on a full slot

	select {
	case <-d.Wake():
	default:
		t.Fatal("expected a wake token")
	}
	select {
	case <-d.Wake():
		t.Fatal("expected exactly one wake token")
	default:
	}
}

func TestClear(t *testing.T) {
	d := NewDispatcher()
	d.Signal(logic.WakeUserInput)
	d.Clear()

	if r := d.TakeReason(); r != logic.WakeNone {
		t.Errorf("expected NONE after Clear, got %s", r)
	}
	select {
	case <-d.Wake():
		t.Error("Clear should drain the wake token")
	default:
	}
}

// Run with -race: concurrent signalers must never produce a value outside
// the set that was written.
func TestConcurrentSignalAndTake(t *testing.T) {
	d := NewDispatcher()
	valid := map[logic.WakeReason]bool{
		logic.WakeNone:        true,
		logic.WakeTimerAlarm:  true,
		logic.WakeUserInput:   true,
		logic.WakeSensorEvent: true,
	}

	var wg sync.WaitGroup
	for _, r := range []logic.WakeReason{logic.WakeTimerAlarm, logic.WakeUserInput, logic.WakeSensorEvent} {
		wg.Add(1)
		go func(r logic.WakeReason) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				d.Signal(r)
			}
		}(r)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		r := d.TakeReason()
		if !valid[r] {
			t.Fatalf("torn read: %d", r)
		}
		select {
		case <-done:
			if r := d.TakeReason(); !valid[r] {
				t.Fatalf("torn read: %d", r)
			}
			return
		default:
		}
	}
}
