package diag

// FakeChannel is a test double that records lifecycle calls.
type FakeChannel struct {
	Opens   int
	Closes  int
	Flushes int

	// Ready is the current IsReady result.
	Ready bool
	// ReadyOnOpen makes Open set Ready. When false the channel never
	// becomes ready after being closed.
	ReadyOnOpen bool

	OpenError  error
	CloseError error
	FlushError error

	// Calls records the order of lifecycle calls.
	Calls []string
}

// NewFakeChannel creates an open channel that becomes ready again on Open.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{Ready: true, ReadyOnOpen: true}
}

func (f *FakeChannel) Open() error {
	f.Opens++
	f.Calls = append(f.Calls, "open")
	if f.OpenError != nil {
		return f.OpenError
	}
	if f.ReadyOnOpen {
		f.Ready = true
	}
	return nil
}

func (f *FakeChannel) Close() error {
	f.Closes++
	f.Calls = append(f.Calls, "close")
	f.Ready = false
	return f.CloseError
}

func (f *FakeChannel) Flush() error {
	f.Flushes++
	f.Calls = append(f.Calls, "flush")
	return f.FlushError
}

func (f *FakeChannel) IsReady() bool {
	return f.Ready
}
