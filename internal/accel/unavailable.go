package accel

import "fmt"

// UnavailableBus stands in for an I2C bus that could not be opened. Every
// transfer returns Err, so Setup fails with it.
type UnavailableBus struct {
	Err error
}

func (b UnavailableBus) WriteReg(reg, val byte) error {
	return fmt.Errorf("i2c unavailable: %w", b.Err)
}

func (b UnavailableBus) ReadRegs(reg byte, buf []byte) error {
	return fmt.Errorf("i2c unavailable: %w", b.Err)
}

func (b UnavailableBus) Close() error { return nil }
