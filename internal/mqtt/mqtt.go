// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

// Topic is the MQTT topic for state transitions.
const Topic = "occupancy/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "occupancy/sensor/system"

// System event names.
const (
	EventStartup      = "STARTUP"
	EventShutdown     = "SHUTDOWN"
	EventHeartbeat    = "HEARTBEAT"
	EventPeriodClosed = "PERIOD_CLOSED"
	EventReconnected  = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a state transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(tr logic.Transition) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Period     *PeriodInfo
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// PeriodInfo describes a closed occupancy period.
type PeriodInfo struct {
	Start        time.Time
	End          time.Time
	Seconds      int64
	NetSeconds   int64
	GrossSeconds int64
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Occupancy TransitionPayload `json:"occupancy"`
}

// TransitionPayload contains the transition details.
type TransitionPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// FormatPayload creates the JSON payload for a state transition.
func FormatPayload(tr logic.Transition) ([]byte, error) {
	payload := Payload{
		Occupancy: TransitionPayload{
			Timestamp: tr.Time.UTC().Format(time.RFC3339),
			Event:     "TRANSITION",
			From:      string(tr.From),
			To:        string(tr.To),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED, PERIOD_CLOSED) that don't carry
// a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string      `json:"timestamp"`
	Event     string      `json:"event"`
	Reason    string      `json:"reason,omitempty"`
	Period    *PeriodJSON `json:"period,omitempty"`
}

// PeriodJSON is the JSON representation of a closed period.
type PeriodJSON struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	Seconds      int64  `json:"seconds"`
	NetSeconds   int64  `json:"net_seconds"`
	GrossSeconds int64  `json:"gross_seconds"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	if p := event.Period; p != nil {
		payload.System.Period = &PeriodJSON{
			Start:        p.Start.UTC().Format(time.RFC3339),
			End:          p.End.UTC().Format(time.RFC3339),
			Seconds:      p.Seconds,
			NetSeconds:   p.NetSeconds,
			GrossSeconds: p.GrossSeconds,
		}
	}
	return json.Marshal(payload)
}
