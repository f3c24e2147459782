// Package accel drives the MMA8452Q accelerometer as a latched tap sensor.
package accel

import (
	"errors"
	"fmt"
)

// DefaultAddress is the I2C address with SA0 high.
const DefaultAddress = 0x1D

// Registers
const (
	regStatus     = 0x00
	regOutXMSB    = 0x01
	regWhoAmI     = 0x0D
	regXYZDataCfg = 0x0E
	regPulseCfg   = 0x21
	regPulseSrc   = 0x22
	regPulseThsX  = 0x23
	regPulseThsY  = 0x24
	regPulseThsZ  = 0x25
	regPulseTmlt  = 0x26
	regPulseLtcy  = 0x27
	regPulseWind  = 0x28
	regCtrl1      = 0x2A
	regCtrl4      = 0x2D
	regCtrl5      = 0x2E
)

const (
	whoAmIValue = 0x2A

	// Single tap on every axis, latched until PULSE_SRC is read.
	pulseCfgLatch = 0x55
	pulseTmlt     = 0x30
	pulseLtcy     = 0xA0
	pulseWind     = 0xFF
	// Pulse interrupt enabled and routed to INT1.
	ctrl4PulseInt = 0x08
	ctrl5PulseInt = 0x08
	// 2g full scale.
	scale2G = 0x00
	// Active at 100 Hz output data rate.
	ctrl1Active100Hz = 0x19

	countsPerG   = 1024.0
	maxThreshold = 0x7F
)

// ErrNotFound is returned when the device does not identify as an MMA8452Q.
var ErrNotFound = errors.New("accel: MMA8452Q not found")

// Bus is register-level access to the device.
type Bus interface {
	WriteReg(reg, val byte) error
	ReadRegs(reg byte, buf []byte) error
	Close() error
}

// Acceleration in g.
type Acceleration struct {
	X, Y, Z float64
}

// MMA8452Q is the accelerometer.
type MMA8452Q struct {
	bus Bus
}

// New wraps a bus.
func New(bus Bus) *MMA8452Q {
	return &MMA8452Q{bus: bus}
}

// Threshold maps a sensitivity to a PULSE_THS register value. Each step is
// 0.063g; values are clamped to the register range.
func Threshold(sensitivity int) byte {
	switch {
	case sensitivity < 1:
		return 1
	case sensitivity > maxThreshold:
		return maxThreshold
	}
	return byte(sensitivity)
}

// Setup verifies the device and configures latched single-tap detection.
func (d *MMA8452Q) Setup(sensitivity int) error {
	var id [1]byte
	if err := d.bus.ReadRegs(regWhoAmI, id[:]); err != nil {
		return fmt.Errorf("read WHO_AM_I: %w", err)
	}
	if id[0] != whoAmIValue {
		return fmt.Errorf("%w (WHO_AM_I=0x%02X)", ErrNotFound, id[0])
	}

	ths := Threshold(sensitivity)
	// Registers can only be changed in standby.
	seq := []struct{ reg, val byte }{
		{regCtrl1, 0x00},
		{regXYZDataCfg, scale2G},
		{regPulseCfg, pulseCfgLatch},
		{regPulseThsX, ths},
		{regPulseThsY, ths},
		{regPulseThsZ, ths},
		{regPulseTmlt, pulseTmlt},
		{regPulseLtcy, pulseLtcy},
		{regPulseWind, pulseWind},
		{regCtrl4, ctrl4PulseInt},
		{regCtrl5, ctrl5PulseInt},
		{regCtrl1, ctrl1Active100Hz},
	}
	for _, w := range seq {
		if err := d.bus.WriteReg(w.reg, w.val); err != nil {
			return fmt.Errorf("write 0x%02X: %w", w.reg, err)
		}
	}
	return d.ClearLatch()
}

// ClearLatch reads PULSE_SRC, which releases the latched interrupt.
func (d *MMA8452Q) ClearLatch() error {
	var src [1]byte
	if err := d.bus.ReadRegs(regPulseSrc, src[:]); err != nil {
		return fmt.Errorf("read PULSE_SRC: %w", err)
	}
	return nil
}

// Read returns the current acceleration.
func (d *MMA8452Q) Read() (Acceleration, error) {
	var raw [6]byte
	if err := d.bus.ReadRegs(regOutXMSB, raw[:]); err != nil {
		return Acceleration{}, fmt.Errorf("read output: %w", err)
	}
	return Acceleration{
		X: toG(raw[0], raw[1]),
		Y: toG(raw[2], raw[3]),
		Z: toG(raw[4], raw[5]),
	}, nil
}

// Close releases the bus.
func (d *MMA8452Q) Close() error {
	return d.bus.Close()
}

// toG converts a left-justified 12-bit two's complement sample.
func toG(msb, lsb byte) float64 {
	v := int16(uint16(msb)<<8|uint16(lsb)) >> 4
	return float64(v) / countsPerG
}
