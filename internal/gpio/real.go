//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

// Board drives the sensor board from actual hardware using the Linux GPIO
// character device.
type Board struct {
	chip       *gpiocdev.Chip
	intLine    *gpiocdev.Line
	switchLine *gpiocdev.Line
	wakeLine   *gpiocdev.Line
	ledLine    *gpiocdev.Line
	latch      Latch
}

// Open requests the board's lines. Edge events on the interrupt, switch and
// wake lines are forwarded to irq from the gpiocdev watcher goroutine.
func Open(pins Pins, latch Latch, irq Signaler) (*Board, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &Board{chip: chip, latch: latch}

	signal := func(reason logic.WakeReason) gpiocdev.EventHandler {
		return func(gpiocdev.LineEvent) {
			irq.Signal(reason)
		}
	}

	// Interrupt line: rising edge, pull-down so a disconnected sensor reads low.
	b.intLine, err = chip.RequestLine(pins.Int, gpiocdev.AsInput, gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge, gpiocdev.WithEventHandler(signal(logic.WakeSensorEvent)))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request interrupt pin %d: %w", pins.Int, err)
	}

	if pins.Switch >= 0 {
		b.switchLine, err = chip.RequestLine(pins.Switch, gpiocdev.AsInput, gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge, gpiocdev.WithEventHandler(signal(logic.WakeUserInput)))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request switch pin %d: %w", pins.Switch, err)
		}
	}

	if pins.Wake >= 0 {
		b.wakeLine, err = chip.RequestLine(pins.Wake, gpiocdev.AsInput, gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge, gpiocdev.WithEventHandler(signal(logic.WakeTimerAlarm)))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request wake pin %d: %w", pins.Wake, err)
		}
	}

	if pins.LED >= 0 {
		b.ledLine, err = chip.RequestLine(pins.LED, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request LED pin %d: %w", pins.LED, err)
		}
	}

	return b, nil
}

// Setup configures the accelerometer. sensitivity is interpreted by the latch.
func (b *Board) Setup(sensitivity int) error {
	if b.latch == nil {
		return errors.New("no accelerometer configured")
	}
	return b.latch.Setup(sensitivity)
}

// ReadOccupancySignal returns the level of the interrupt line.
func (b *Board) ReadOccupancySignal() (bool, error) {
	v, err := b.intLine.Value()
	if err != nil {
		return false, fmt.Errorf("read interrupt pin: %w", err)
	}
	return v == 1, nil
}

// ClearInterruptLatch releases the accelerometer's latched interrupt.
func (b *Board) ClearInterruptLatch() error {
	if b.latch == nil {
		return nil
	}
	return b.latch.ClearLatch()
}

// SwitchPressed reports whether the user switch is held (active low).
func (b *Board) SwitchPressed() (bool, error) {
	if b.switchLine == nil {
		return false, nil
	}
	v, err := b.switchLine.Value()
	if err != nil {
		return false, fmt.Errorf("read switch pin: %w", err)
	}
	return v == 0, nil
}

// Set drives the status LED.
func (b *Board) Set(on bool) error {
	if b.ledLine == nil {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	return b.ledLine.SetValue(v)
}

// Close releases GPIO resources. The LED is switched off and reconfigured
// as an input with pull-down (matching Pi boot defaults) before closing.
func (b *Board) Close() error {
	var errs []error

	if b.ledLine != nil {
		if err := b.ledLine.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure LED pin: %w", err))
		}
	}
	for _, l := range []*gpiocdev.Line{b.intLine, b.switchLine, b.wakeLine, b.ledLine} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
