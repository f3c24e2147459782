// Package status provides a thread-safe status tracker for the occupancy-sensor daemon.
// It is read by HTTP handlers and the heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/logic"
	"github.com/sweeney/occupancy-sensor/internal/power"
)

// Config contains daemon configuration for display.
type Config struct {
	NodeID       string
	SessionID    string
	DebounceMin  int
	Sensitivity  int
	SleepSeconds int64
	TickMs       int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Power          power.Snapshot
	LastTransition *logic.Transition
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Power:     power.Snapshot{State: logic.StateIdle},
		},
		now: time.Now,
	}
}

// Update stores the machine's snapshot. Called from runLoop on every tick.
func (t *Tracker) Update(ps power.Snapshot) {
	t.mu.Lock()
	t.snap.Power = ps
	t.mu.Unlock()
}

// SetTransition records the most recent state transition.
func (t *Tracker) SetTransition(tr logic.Transition) {
	t.mu.Lock()
	t.snap.LastTransition = &tr
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetConfig replaces the displayed config, e.g. after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	// Update replaces Power.WakeCounts and never mutates it.
	if s.LastTransition != nil {
		tr := *s.LastTransition
		s.LastTransition = &tr
	}
	s.Now = t.now()
	return s
}
