package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string          `json:"event,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	NodeID         string          `json:"node_id"`
	SessionID      string          `json:"session_id,omitempty"`
	State          string          `json:"state"`
	Occupancy      OccupancyJSON   `json:"occupancy"`
	LastWake       string          `json:"last_wake"`
	WakeCounts     map[string]int  `json:"wake_counts"`
	SleepCycles    int             `json:"sleep_cycles"`
	LastTransition *TransitionJSON `json:"last_transition,omitempty"`
	UptimeSeconds  int64           `json:"uptime_seconds"`
	StartTime      string          `json:"start_time"`
	Timestamp      string          `json:"timestamp"`
	MQTT           MQTTStatus      `json:"mqtt"`
	Config         ConfigJSON      `json:"config"`
}

// OccupancyJSON reports the counters and the open period.
type OccupancyJSON struct {
	Active       bool   `json:"active"`
	PeriodStart  string `json:"period_start,omitempty"`
	NetSeconds   int64  `json:"net_seconds"`
	GrossSeconds int64  `json:"gross_seconds"`
}

// TransitionJSON is the JSON representation of a state transition.
type TransitionJSON struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DebounceMin  int    `json:"debounce_min"`
	Sensitivity  int    `json:"sensitivity"`
	SleepSeconds int64  `json:"sleep_seconds"`
	TickMs       int64  `json:"tick_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
}

// TransitionToJSON converts a transition.
func TransitionToJSON(tr logic.Transition) TransitionJSON {
	return TransitionJSON{
		From:      string(tr.From),
		To:        string(tr.To),
		Timestamp: tr.Time.UTC().Format(time.RFC3339),
	}
}

func buildInner(snap Snapshot) StatusInner {
	ps := snap.Power
	state := string(ps.State)
	if state == "" {
		state = "UNKNOWN"
	}

	counts := make(map[string]int, len(logic.WakeReasons))
	for _, r := range logic.WakeReasons {
		counts[r.String()] = ps.WakeCounts[r]
	}

	inner := StatusInner{
		NodeID:    snap.Config.NodeID,
		SessionID: snap.Config.SessionID,
		State:     state,
		Occupancy: OccupancyJSON{
			Active:       ps.Period.Active,
			NetSeconds:   ps.Accumulator.NetSeconds,
			GrossSeconds: ps.Accumulator.GrossSeconds,
		},
		LastWake:      ps.LastWake.String(),
		WakeCounts:    counts,
		SleepCycles:   ps.SleepCycles,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			DebounceMin:  snap.Config.DebounceMin,
			Sensitivity:  snap.Config.Sensitivity,
			SleepSeconds: snap.Config.SleepSeconds,
			TickMs:       snap.Config.TickMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if ps.Period.Active {
		inner.Occupancy.PeriodStart = ps.Period.Start.UTC().Format(time.RFC3339)
	}
	if snap.LastTransition != nil {
		tr := TransitionToJSON(*snap.LastTransition)
		inner.LastTransition = &tr
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
