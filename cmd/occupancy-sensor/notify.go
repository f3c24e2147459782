package main

import (
	"time"

	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/logic"
	"github.com/sweeney/occupancy-sensor/internal/metrics"
	"github.com/sweeney/occupancy-sensor/internal/mqtt"
	"github.com/sweeney/occupancy-sensor/internal/power"
	"github.com/sweeney/occupancy-sensor/internal/status"
)

// liveFeed pushes machine outputs to connected web clients.
type liveFeed interface {
	BroadcastTransition(tr logic.Transition)
	BroadcastPeriod(p power.PeriodClosed)
}

// periodLog stores closed periods.
type periodLog interface {
	RecordPeriod(start, end time.Time, seconds int64) error
}

// notifier fans the machine's outputs out to every consumer. Any field may
// be nil.
type notifier struct {
	publisher mqtt.Publisher
	tracker   *status.Tracker
	metrics   *metrics.Recorder
	live      liveFeed
	periods   periodLog
}

func (n *notifier) NotifyTransition(tr logic.Transition) {
	if n.tracker != nil {
		n.tracker.SetTransition(tr)
	}
	if n.metrics != nil {
		n.metrics.RecordTransition(tr)
	}
	if n.live != nil {
		n.live.BroadcastTransition(tr)
	}
	if n.publisher != nil {
		if err := n.publisher.Publish(tr); err != nil {
			log.Warnf("publish transition: %v", err)
		}
	}
}

func (n *notifier) NotifyPeriodClosed(p power.PeriodClosed) {
	if n.periods != nil {
		if err := n.periods.RecordPeriod(p.Start, p.End, p.Seconds); err != nil {
			log.Warnf("record period: %v", err)
		}
	}
	if n.metrics != nil {
		n.metrics.RecordPeriod(p)
	}
	if n.live != nil {
		n.live.BroadcastPeriod(p)
	}
	if n.publisher != nil {
		err := n.publisher.PublishSystem(mqtt.SystemEvent{
			Timestamp: p.End,
			Event:     mqtt.EventPeriodClosed,
			Period: &mqtt.PeriodInfo{
				Start:        p.Start,
				End:          p.End,
				Seconds:      p.Seconds,
				NetSeconds:   p.Accumulator.NetSeconds,
				GrossSeconds: p.Accumulator.GrossSeconds,
			},
		})
		if err != nil {
			log.Warnf("publish period: %v", err)
		}
	}
}
