package lowpower

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Alarm is the part of the RTC the kernel suspender needs for its fallback
// timeout.
type Alarm interface {
	AlarmPending() bool
	ArmAlarmAfter(d time.Duration) error
}

// Kernel suspends the whole system through /sys/power/state. The write
// returns after resume, which the kernel triggers on the RTC alarm or any
// GPIO line configured as a wake source.
type Kernel struct {
	mode      string
	statePath string
	alarm     Alarm
}

// Modes accepted by NewKernel.
var Modes = []string{"freeze", "standby", "mem"}

// NewKernel creates a kernel suspender for mode ("freeze", "standby" or
// "mem"). The mode must be listed in /sys/power/state.
func NewKernel(mode string, alarm Alarm) (*Kernel, error) {
	return newKernel(mode, "/sys/power/state", alarm)
}

func newKernel(mode, statePath string, alarm Alarm) (*Kernel, error) {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", statePath, err)
	}
	supported := strings.Fields(string(data))
	for _, m := range supported {
		if m == mode {
			return &Kernel{mode: mode, statePath: statePath, alarm: alarm}, nil
		}
	}
	return nil, fmt.Errorf("suspend mode %q not supported (have %v)", mode, supported)
}

// SuspendFor suspends the system. If no RTC alarm is pending, a relative
// alarm of d is armed first so the node cannot sleep forever.
func (k *Kernel) SuspendFor(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.alarm != nil && !k.alarm.AlarmPending() {
		if err := k.alarm.ArmAlarmAfter(d); err != nil {
			return fmt.Errorf("arm fallback alarm: %w", err)
		}
	}
	if err := os.WriteFile(k.statePath, []byte(k.mode), 0); err != nil {
		return fmt.Errorf("enter %s: %w", k.mode, err)
	}
	return nil
}
