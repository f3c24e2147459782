package main

import (
	"context"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/config"
	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/metrics"
	"github.com/sweeney/occupancy-sensor/internal/mqtt"
	"github.com/sweeney/occupancy-sensor/internal/power"
	"github.com/sweeney/occupancy-sensor/internal/status"
)

// loopDeps is everything runLoop touches. publisher, mqttStatus, metrics and
// reload may be nil.
type loopDeps struct {
	machine    *power.Machine
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Recorder
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal
	reload     func() (*config.Config, error)
}

func runLoop(ctx context.Context, d loopDeps) error {
	lastHeartbeat := d.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case s := <-d.sig:
			if s == syscall.SIGHUP {
				reloadConfig(d)
				continue
			}
			log.Infof("received %v, shutting down", s)
			publishLifecycle(d, mqtt.EventShutdown, signalName(s))
			return nil

		case <-d.tick:
			d.machine.Step(ctx)

			ps := d.machine.Snapshot()
			connected := d.mqttStatus != nil && d.mqttStatus.IsConnected()
			d.tracker.Update(ps)
			d.tracker.SetMQTTConnected(connected)
			if d.metrics != nil {
				d.metrics.ObserveSnapshot(ps)
				d.metrics.SetMQTTConnected(connected)
			}

			if d.heartbeat <= 0 {
				continue
			}
			if t := d.now(); t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				log.Infof("heartbeat: state=%s net=%ds gross=%ds sleeps=%d",
					ps.State, ps.Accumulator.NetSeconds, ps.Accumulator.GrossSeconds, ps.SleepCycles)
				publishLifecycle(d, mqtt.EventHeartbeat, "")
			}
		}
	}
}

// publishLifecycle publishes a system event carrying a status snapshot.
// Failures are logged only.
func publishLifecycle(d loopDeps, event, reason string) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Warnf("failed to publish %s event: %v", strings.ToLower(event), err)
		return
	}
	log.Infof("published %s event", strings.ToLower(event))
}

// reloadConfig applies a re-read config. Only the debounce is live; other
// keys take effect on restart.
func reloadConfig(d loopDeps) {
	if d.reload == nil {
		return
	}
	cfg, err := d.reload()
	if err != nil {
		log.Warnf("reload config: %v", err)
		return
	}
	if err := d.machine.SetDebounceMin(cfg.DebounceMin); err != nil {
		log.Warnf("reload config: %v", err)
		return
	}
	sc := d.tracker.Snapshot().Config
	sc.DebounceMin = cfg.DebounceMin
	d.tracker.SetConfig(sc)
	log.Infof("config reloaded: debounce=%dmin", cfg.DebounceMin)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
