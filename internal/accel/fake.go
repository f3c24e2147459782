package accel

// FakeBus is an in-memory register file.
type FakeBus struct {
	Regs map[byte]byte
	// Writes records every write in order.
	Writes [][2]byte
	// Reads records the first register of every read.
	Reads []byte

	ReadError  error
	WriteError error
	Closed     bool
}

// NewFakeBus creates a bus holding an MMA8452Q.
func NewFakeBus() *FakeBus {
	return &FakeBus{Regs: map[byte]byte{regWhoAmI: whoAmIValue}}
}

func (f *FakeBus) WriteReg(reg, val byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, [2]byte{reg, val})
	f.Regs[reg] = val
	return nil
}

func (f *FakeBus) ReadRegs(reg byte, buf []byte) error {
	f.Reads = append(f.Reads, reg)
	if f.ReadError != nil {
		return f.ReadError
	}
	for i := range buf {
		buf[i] = f.Regs[reg+byte(i)]
	}
	return nil
}

func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}
