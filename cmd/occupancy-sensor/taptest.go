package main

import (
	"context"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/power"
)

const (
	tapTestDuration = 20 * time.Second
	tapPause        = 100 * time.Millisecond
)

// tapTest logs every tap for tapTestDuration so the sensitivity can be
// checked on site. It runs before the main loop, so it feeds the watchdog
// itself. It returns the number of taps seen.
func tapTest(ctx context.Context, sensor power.Sensor, keepAlive func() error, now func() time.Time, pause func(context.Context, time.Duration)) int {
	log.Infof("tap test: tap the sensor, running for %v", tapTestDuration)
	deadline := now().Add(tapTestDuration)

	taps := 0
	for now().Before(deadline) && ctx.Err() == nil {
		if err := keepAlive(); err != nil {
			log.Warnf("tap test: watchdog: %v", err)
		}
		high, err := sensor.ReadOccupancySignal()
		if err != nil {
			log.Warnf("tap test: read sensor: %v", err)
		} else if high {
			taps++
			log.Infof("tap detected (%d)", taps)
			if err := sensor.ClearInterruptLatch(); err != nil {
				log.Warnf("tap test: clear latch: %v", err)
			}
		}
		pause(ctx, tapPause)
	}

	log.Infof("tap test finished: %d taps", taps)
	return taps
}
