package diag

import (
	"bytes"
	"errors"
	"io"
	"testing"

	serial "github.com/tarm/goserial"
)

type nopPort struct {
	bytes.Buffer
	closed bool
	synced int
}

func (p *nopPort) Close() error {
	p.closed = true
	return nil
}

func (p *nopPort) Sync() error {
	p.synced++
	return nil
}

func newTestConsole(port *nopPort, openErr error) *Console {
	c := NewConsole("/dev/ttyS0", 115200)
	c.openPort = func(cfg *serial.Config) (io.ReadWriteCloser, error) {
		if openErr != nil {
			return nil, openErr
		}
		return port, nil
	}
	return c
}

func TestConsoleLifecycle(t *testing.T) {
	port := &nopPort{}
	c := newTestConsole(port, nil)

	if c.IsReady() {
		t.Error("console should start closed")
	}
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !c.IsReady() {
		t.Error("console should be ready after Open")
	}

	if _, err := c.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if port.String() != "hello\n" {
		t.Errorf("port got %q", port.String())
	}

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if port.synced != 1 {
		t.Errorf("expected 1 sync, got %d", port.synced)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed || c.IsReady() {
		t.Error("console should be closed")
	}
}

func TestConsoleDropsWritesWhileClosed(t *testing.T) {
	port := &nopPort{}
	c := newTestConsole(port, nil)

	n, err := c.Write([]byte("lost"))
	if err != nil || n != 4 {
		t.Errorf("closed write: n=%d err=%v", n, err)
	}
	if port.Len() != 0 {
		t.Error("closed console must not write to the port")
	}
}

func TestConsoleOpenError(t *testing.T) {
	c := newTestConsole(nil, errors.New("no such device"))
	if err := c.Open(); err == nil {
		t.Fatal("expected open error")
	}
	if c.IsReady() {
		t.Error("console should not be ready after failed open")
	}
}

func TestMulti(t *testing.T) {
	a := NewFakeChannel()
	b := NewFakeChannel()
	m := Multi{a, b}

	if !m.IsReady() {
		t.Error("expected ready")
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.IsReady() {
		t.Error("expected not ready after Close")
	}

	b.OpenError = errors.New("broker down")
	if err := m.Open(); err == nil {
		t.Error("expected joined open error")
	}
	if a.Opens != 1 || b.Opens != 1 {
		t.Errorf("every member must be opened: a=%d b=%d", a.Opens, b.Opens)
	}
	if m.IsReady() {
		t.Error("expected not ready while one member failed")
	}
}
