//go:build !linux

package gpio

import "errors"

// Board is not available on non-Linux platforms.
type Board struct{}

// Open returns an error on non-Linux platforms.
func Open(pins Pins, latch Latch, irq Signaler) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (b *Board) Setup(sensitivity int) error { return errors.New("gpio: not supported") }

func (b *Board) ReadOccupancySignal() (bool, error) { return false, errors.New("gpio: not supported") }

func (b *Board) ClearInterruptLatch() error { return errors.New("gpio: not supported") }

func (b *Board) SwitchPressed() (bool, error) { return false, errors.New("gpio: not supported") }

func (b *Board) Set(on bool) error { return errors.New("gpio: not supported") }

func (b *Board) Close() error { return nil }
