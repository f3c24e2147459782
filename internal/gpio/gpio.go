// Package gpio provides the sensor board: the accelerometer interrupt line,
// the user switch, the RTC wake line and the status LED.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/occupancy-sensor/internal/logic"

// Signaler receives wake reasons from edge handlers. Handlers run on the
// GPIO watcher goroutine, so Signal must be safe for concurrent use and
// must not block.
type Signaler interface {
	Signal(reason logic.WakeReason)
}

// Latch is the accelerometer side of the occupancy sensor.
type Latch interface {
	Setup(sensitivity int) error
	// ClearLatch releases the latched interrupt so the line drops.
	ClearLatch() error
}

// Pins holds line offsets on the chip. A negative offset disables the line.
type Pins struct {
	Chip   string
	Int    int // accelerometer interrupt, active high
	Switch int // user switch, active low
	Wake   int // RTC alarm output, active low
	LED    int // status LED
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinInt    = 17
	DefaultPinSwitch = 27
	DefaultPinWake   = 22
	DefaultPinLED    = 23
)

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:   "gpiochip0",
		Int:    DefaultPinInt,
		Switch: DefaultPinSwitch,
		Wake:   DefaultPinWake,
		LED:    DefaultPinLED,
	}
}
