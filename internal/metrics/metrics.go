// Package metrics exposes the node's state as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/occupancy-sensor/internal/logic"
	"github.com/sweeney/occupancy-sensor/internal/power"
)

const namespace = "occupancy"

// Recorder owns a registry with the node's metrics.
type Recorder struct {
	registry *prometheus.Registry

	state         *prometheus.GaugeVec
	netSeconds    prometheus.Gauge
	grossSeconds  prometheus.Gauge
	active        prometheus.Gauge
	mqttConnected prometheus.Gauge
	transitions   *prometheus.CounterVec
	wakes         *prometheus.CounterVec
	sleepCycles   prometheus.Counter
	wakeTimeouts  prometheus.Counter
	periods       prometheus.Histogram

	// Snapshot counters are cumulative; the last seen values turn them into
	// counter increments.
	mu           sync.Mutex
	seenWakes    map[logic.WakeReason]int
	seenCycles   int
	seenTimeouts int
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_state",
			Help:      "1 for the current power state, 0 otherwise.",
		}, []string{"state"}),
		netSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "net_seconds",
			Help:      "Occupied seconds accumulated from closed periods this session.",
		}),
		grossSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gross_seconds",
			Help:      "Gross occupied seconds, written at every close.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "period_active",
			Help:      "1 while an occupancy period is open.",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker connection is up.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Power state transitions.",
		}, []string{"from", "to"}),
		wakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wakes_total",
			Help:      "Wakes from sleep by reason.",
		}, []string{"reason"}),
		sleepCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sleep_cycles_total",
			Help:      "Completed sleeps.",
		}),
		wakeTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_timeouts_total",
			Help:      "Wakes where the diagnostics channel was not ready in time.",
		}),
		periods: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "period_seconds",
			Help:      "Length of closed occupancy periods.",
			Buckets:   []float64{60, 120, 300, 600, 1800, 3600, 7200, 14400},
		}),
		seenWakes: make(map[logic.WakeReason]int),
	}

	r.registry.MustRegister(
		r.state, r.netSeconds, r.grossSeconds, r.active, r.mqttConnected,
		r.transitions, r.wakes, r.sleepCycles, r.wakeTimeouts, r.periods,
	)
	for _, s := range logic.PowerStates {
		r.state.WithLabelValues(string(s))
	}
	for _, w := range logic.WakeReasons {
		r.wakes.WithLabelValues(w.String())
	}
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot updates gauges and counters from the machine's snapshot.
func (r *Recorder) ObserveSnapshot(ps power.Snapshot) {
	for _, s := range logic.PowerStates {
		v := 0.0
		if s == ps.State {
			v = 1
		}
		r.state.WithLabelValues(string(s)).Set(v)
	}
	r.netSeconds.Set(float64(ps.Accumulator.NetSeconds))
	r.grossSeconds.Set(float64(ps.Accumulator.GrossSeconds))
	if ps.Period.Active {
		r.active.Set(1)
	} else {
		r.active.Set(0)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for reason, n := range ps.WakeCounts {
		if d := n - r.seenWakes[reason]; d > 0 {
			r.wakes.WithLabelValues(reason.String()).Add(float64(d))
		}
		r.seenWakes[reason] = n
	}
	if d := ps.SleepCycles - r.seenCycles; d > 0 {
		r.sleepCycles.Add(float64(d))
	}
	r.seenCycles = ps.SleepCycles
	if d := ps.WakeTimeouts - r.seenTimeouts; d > 0 {
		r.wakeTimeouts.Add(float64(d))
	}
	r.seenTimeouts = ps.WakeTimeouts
}

// RecordTransition counts a state transition.
func (r *Recorder) RecordTransition(tr logic.Transition) {
	r.transitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
}

// RecordPeriod observes a closed period.
func (r *Recorder) RecordPeriod(p power.PeriodClosed) {
	r.periods.Observe(float64(p.Seconds))
}

// SetMQTTConnected sets the broker connectivity gauge.
func (r *Recorder) SetMQTTConnected(connected bool) {
	if connected {
		r.mqttConnected.Set(1)
	} else {
		r.mqttConnected.Set(0)
	}
}
