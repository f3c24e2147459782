//go:build linux

package accel

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	i2cSlave = 0x0703
	i2cRdwr  = 0x0707
	i2cMRd   = 0x0001
)

type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   unsafe.Pointer
}

type i2cRdwrData struct {
	msgs  unsafe.Pointer
	nmsgs uint32
}

// DevBus is an I2C device node such as /dev/i2c-1.
type DevBus struct {
	f    *os.File
	addr uint16
}

// OpenBus opens dev and selects the device at addr.
func OpenBus(dev string, addr uint16) (*DevBus, error) {
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
		f.Close()
		return nil, fmt.Errorf("select i2c address 0x%02X: %w", addr, err)
	}
	return &DevBus{f: f, addr: addr}, nil
}

func (b *DevBus) WriteReg(reg, val byte) error {
	_, err := b.f.Write([]byte{reg, val})
	return err
}

// ReadRegs reads len(buf) registers starting at reg in one combined
// transaction (repeated start), which the MMA8452Q requires.
func (b *DevBus) ReadRegs(reg byte, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	w := []byte{reg}
	msgs := []i2cMsg{
		{addr: b.addr, len: 1, buf: unsafe.Pointer(&w[0])},
		{addr: b.addr, flags: i2cMRd, len: uint16(len(buf)), buf: unsafe.Pointer(&buf[0])},
	}
	data := i2cRdwrData{msgs: unsafe.Pointer(&msgs[0]), nmsgs: uint32(len(msgs))}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), i2cRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(buf)
	runtime.KeepAlive(msgs)
	runtime.KeepAlive(&data)
	if errno != 0 {
		return fmt.Errorf("i2c read 0x%02X: %w", reg, errno)
	}
	return nil
}

func (b *DevBus) Close() error {
	return b.f.Close()
}
