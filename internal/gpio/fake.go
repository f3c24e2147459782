package gpio

// FakeSensor is a test double for the sensor board.
type FakeSensor struct {
	// High is the current level of the interrupt line.
	High bool
	// ClearDrops makes ClearInterruptLatch drop the line, like the real
	// accelerometer does.
	ClearDrops bool

	// Pressed is the current state of the user switch.
	Pressed bool

	SetupError error
	ReadError  error
	ClearError error

	// Sensitivity records the value passed to Setup.
	Sensitivity int
	Setups      int
	Reads       int
	Clears      int
}

// NewFakeSensor creates a low, working sensor.
func NewFakeSensor() *FakeSensor {
	return &FakeSensor{}
}

func (f *FakeSensor) Setup(sensitivity int) error {
	f.Setups++
	f.Sensitivity = sensitivity
	return f.SetupError
}

func (f *FakeSensor) ReadOccupancySignal() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.High, nil
}

func (f *FakeSensor) ClearInterruptLatch() error {
	f.Clears++
	if f.ClearError != nil {
		return f.ClearError
	}
	if f.ClearDrops {
		f.High = false
	}
	return nil
}

func (f *FakeSensor) SwitchPressed() (bool, error) {
	return f.Pressed, nil
}

// FakeIndicator records LED changes.
type FakeIndicator struct {
	On      bool
	Changes []bool
	Err     error
}

func (f *FakeIndicator) Set(on bool) error {
	if f.Err != nil {
		return f.Err
	}
	f.On = on
	f.Changes = append(f.Changes, on)
	return nil
}
