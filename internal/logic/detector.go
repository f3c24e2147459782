package logic

import "time"

// Detector turns a chattering occupancy signal into occupied seconds.
type Detector struct {
	debounce DebounceConfig
	period   OccupancyPeriod
	acc      Accumulator
}

// NewDetector creates a detector with the given debounce window.
func NewDetector(cfg DebounceConfig) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{debounce: cfg}, nil
}

// Poll takes a raw sample and reports whether a period is active afterwards.
//
// The debounce window is measured from the start of the period, not from the
// last positive sample: once the window since the start has passed, the first
// negative sample closes the period.
func (d *Detector) Poll(raw bool, now time.Time) bool {
	if raw {
		if !d.period.Active {
			d.period = OccupancyPeriod{Start: now, Active: true}
		}
		return true
	}

	if !d.period.Active {
		return false
	}

	elapsed := ElapsedSeconds(d.period.Start, now)
	if elapsed <= d.debounce.WindowSeconds {
		return true
	}

	d.acc.NetSeconds += elapsed
	d.acc.GrossSeconds = d.acc.NetSeconds + 1
	d.acc.Dirty = true
	d.period.Active = false
	return false
}

// Active reports whether a period is open.
func (d *Detector) Active() bool {
	return d.period.Active
}

// Period returns the current (or last) period.
func (d *Detector) Period() OccupancyPeriod {
	return d.period
}

// Accumulator returns a copy of the counters.
func (d *Detector) Accumulator() Accumulator {
	return d.acc
}

// MarkFlushed clears the dirty flag after the counters were persisted.
func (d *Detector) MarkFlushed() {
	d.acc.Dirty = false
}

// Restore seeds the counters, e.g. from a persisted session.
// The restored value is considered already persisted.
func (d *Detector) Restore(acc Accumulator) {
	acc.Dirty = false
	d.acc = acc
}

// Debounce returns the active debounce configuration.
func (d *Detector) Debounce() DebounceConfig {
	return d.debounce
}

// SetDebounce replaces the debounce window. An open period keeps its start
// and is judged against the new window from the next Poll.
func (d *Detector) SetDebounce(cfg DebounceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.debounce = cfg
	return nil
}
