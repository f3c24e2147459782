package diag

import (
	"fmt"
	"io"
	"sync"

	serial "github.com/tarm/goserial"
)

// Console is a serial diagnostics console. Log output is mirrored to it
// through Write/Sync; while closed, writes are dropped.
type Console struct {
	cfg      serial.Config
	openPort func(*serial.Config) (io.ReadWriteCloser, error)

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewConsole creates a console for the given device. It is not opened.
func NewConsole(device string, baud int) *Console {
	return &Console{
		cfg:      serial.Config{Name: device, Baud: baud},
		openPort: serial.OpenPort,
	}
}

// Open opens the serial port. Opening an open console is a no-op.
func (c *Console) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return nil
	}
	port, err := c.openPort(&c.cfg)
	if err != nil {
		return fmt.Errorf("open console %s: %w", c.cfg.Name, err)
	}
	c.port = port
	return nil
}

// Close closes the serial port.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	if err != nil {
		return fmt.Errorf("close console %s: %w", c.cfg.Name, err)
	}
	return nil
}

// Flush waits for written data to reach the device when the port supports it.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.port.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// IsReady reports whether the port is open.
func (c *Console) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

// Write implements io.Writer. Data written while closed is discarded.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return len(p), nil
	}
	return c.port.Write(p)
}

// Sync implements zapcore.WriteSyncer.
func (c *Console) Sync() error {
	return c.Flush()
}
