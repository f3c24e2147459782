// Package diag provides the diagnostics channels that are closed while the
// node sleeps and reopened on wake.
package diag

import "errors"

// Channel is a communication channel used for diagnostics.
type Channel interface {
	Open() error
	Close() error
	Flush() error
	// IsReady must not block.
	IsReady() bool
}

// Multi treats several channels as one. It is ready when all members are.
type Multi []Channel

// Open opens every member, returning the joined errors.
func (m Multi) Open() error {
	var errs []error
	for _, c := range m {
		if err := c.Open(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every member, returning the joined errors.
func (m Multi) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every member, returning the joined errors.
func (m Multi) Flush() error {
	var errs []error
	for _, c := range m {
		if err := c.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsReady reports whether every member is ready.
func (m Multi) IsReady() bool {
	for _, c := range m {
		if !c.IsReady() {
			return false
		}
	}
	return true
}
