// Package wake hands wake reasons from interrupt context to the main loop.
package wake

import (
	"sync/atomic"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

// Dispatcher is a single-slot mailbox. Signal may be called from any
// goroutine (GPIO edge handlers); TakeReason and Clear belong to the main
// loop. The pending reason is last-write-wins, nothing is queued.
type Dispatcher struct {
	pending atomic.Uint32
	wake    chan struct{}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{wake: make(chan struct{}, 1)}
}

// Signal records reason as the pending wake reason. It never blocks.
func (d *Dispatcher) Signal(reason logic.WakeReason) {
	d.pending.Store(uint32(reason))
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// TakeReason returns the pending reason and resets it to WakeNone.
func (d *Dispatcher) TakeReason() logic.WakeReason {
	return logic.WakeReason(d.pending.Swap(uint32(logic.WakeNone)))
}

// Clear discards any pending reason and wake token before a sleep is entered.
func (d *Dispatcher) Clear() {
	d.pending.Store(uint32(logic.WakeNone))
	select {
	case <-d.wake:
	default:
	}
}

// Wake is closed over by software suspenders: a token arrives on every Signal.
func (d *Dispatcher) Wake() <-chan struct{} {
	return d.wake
}
