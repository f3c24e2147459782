//go:build !linux

package accel

import "errors"

// DevBus is not available on non-Linux platforms.
type DevBus struct{}

// OpenBus returns an error on non-Linux platforms.
func OpenBus(dev string, addr uint16) (*DevBus, error) {
	return nil, errors.New("accel: i2c not supported on this platform (requires Linux)")
}

func (b *DevBus) WriteReg(reg, val byte) error { return errors.New("accel: not supported") }

func (b *DevBus) ReadRegs(reg byte, buf []byte) error { return errors.New("accel: not supported") }

func (b *DevBus) Close() error { return nil }
