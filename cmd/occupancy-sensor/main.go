// Command occupancy-sensor tracks room occupancy from an accelerometer tap
// sensor, sleeping between events, and publishes state changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/occupancy-sensor/internal/accel"
	"github.com/sweeney/occupancy-sensor/internal/battery"
	"github.com/sweeney/occupancy-sensor/internal/config"
	"github.com/sweeney/occupancy-sensor/internal/diag"
	"github.com/sweeney/occupancy-sensor/internal/gpio"
	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/logic"
	"github.com/sweeney/occupancy-sensor/internal/lowpower"
	"github.com/sweeney/occupancy-sensor/internal/metrics"
	"github.com/sweeney/occupancy-sensor/internal/mqtt"
	"github.com/sweeney/occupancy-sensor/internal/power"
	"github.com/sweeney/occupancy-sensor/internal/rtc"
	"github.com/sweeney/occupancy-sensor/internal/status"
	"github.com/sweeney/occupancy-sensor/internal/store"
	"github.com/sweeney/occupancy-sensor/internal/wake"
	"github.com/sweeney/occupancy-sensor/internal/web"
)

type options struct {
	configPath  string
	debug       bool
	printState  bool
	tapTest     bool
	debounceMin int
	sensitivity int
	broker      string
	httpAddr    string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", config.DefaultPath, "Path to the YAML config file")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&o.printState, "print-state", false, "Print the sensor pin and RTC time and exit")
	flag.BoolVar(&o.tapTest, "tap-test", false, "Log taps for 20 seconds before starting")
	flag.IntVar(&o.debounceMin, "debounce-min", 0, "Debounce in minutes (overrides config)")
	flag.IntVar(&o.sensitivity, "sensitivity", 0, "Tap sensitivity (overrides config)")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&o.httpAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies the flag overrides.
func loadConfig(o options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.debounceMin != 0 {
		cfg.DebounceMin = o.debounceMin
	}
	if o.sensitivity != 0 {
		cfg.Sensitivity = o.sensitivity
	}
	if o.broker != "" {
		cfg.MQTT.Broker = o.broker
	}
	switch o.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = o.httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var console *diag.Console
	var sinks []zapcore.WriteSyncer
	if cfg.Console.Device != "" {
		console = diag.NewConsole(cfg.Console.Device, cfg.Console.Baud)
		if err := console.Open(); err != nil {
			fmt.Fprintf(os.Stderr, "console %s: %v\n", cfg.Console.Device, err)
		}
		sinks = append(sinks, console)
	}
	log.Init(o.debug, sinks...)
	defer log.Sync()

	// Initialize accelerometer and GPIO. Only a GPIO failure is fatal; the
	// LED it drives is what shows the error state.
	var bus accel.Bus
	if b, err := accel.OpenBus(cfg.I2C.Bus, cfg.I2C.Address); err != nil {
		log.Errorf("init i2c: %v", err)
		bus = accel.UnavailableBus{Err: err}
	} else {
		bus = b
	}
	dev := accel.New(bus)
	defer dev.Close()

	dispatcher := wake.NewDispatcher()
	board, err := gpio.Open(gpio.Pins{
		Chip:   cfg.GPIO.Chip,
		Int:    cfg.GPIO.IntPin,
		Switch: cfg.GPIO.SwitchPin,
		Wake:   cfg.GPIO.WakePin,
		LED:    cfg.GPIO.LEDPin,
	}, dev, dispatcher)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	// Initialize MQTT before the watchdog is armed: the first connect can
	// take up to the connect timeout. The publisher doubles as the
	// diagnostics channel.
	var publisher *mqtt.RealPublisher
	var channels diag.Multi
	if cfg.MQTT.Broker != "" && !o.printState {
		publisher, err = mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		channels = append(channels, publisher)
	}
	if console != nil {
		channels = append(channels, console)
		defer console.Close()
	}

	// Initialize RTC and watchdog. A missing RTC fails setup.
	clock := openClock(cfg.RTC.Name, cfg.RTC.Watchdog)
	defer clock.Close()

	// Print state mode
	if o.printState {
		return printState(os.Stdout, board, clock)
	}

	var suspender power.Suspender
	if cfg.Suspend.Mode == config.SuspendTimer {
		suspender = lowpower.NewTimer(dispatcher.Wake())
	} else {
		k, err := lowpower.NewKernel(cfg.Suspend.Mode, clock)
		if err != nil {
			return fmt.Errorf("init suspend: %w", err)
		}
		suspender = k
	}

	// Initialize persistence. One session per boot.
	var db *store.DB
	sessionID := uuid.NewString()
	if cfg.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
		db, err = store.OpenSession(cfg.Store.Path, cfg.NodeID, sessionID)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
	}

	var batt power.Battery
	if cfg.Battery.Supply != "" {
		b, err := battery.NewSysfs(cfg.Battery.Supply, cfg.Battery.LowPercent)
		if err != nil {
			log.Warnf("battery monitoring disabled: %v", err)
		} else {
			batt = b
		}
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, sessionID))
	recorder := metrics.New()

	n := &notifier{tracker: tracker, metrics: recorder}
	if publisher != nil {
		n.publisher = publisher
	}
	if db != nil {
		n.periods = db
	}

	var channel diag.Channel
	if len(channels) > 0 {
		channel = channels
	}
	deps := power.Deps{
		Clock:     clock,
		Sensor:    board,
		Scheduler: power.NewScheduler(clock, suspender, channel, cfg.WakeTimeout),
		Wake:      dispatcher,
		Indicator: board,
		Battery:   batt,
		Notifier:  n,
	}
	if db != nil {
		deps.Persister = db
	}
	machine, err := power.New(power.Config{
		DebounceMin:  cfg.DebounceMin,
		Sensitivity:  cfg.Sensitivity,
		SleepSeconds: cfg.SleepSeconds,
	}, deps)
	if err != nil {
		return fmt.Errorf("init state machine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A setup failure leaves the machine in the error state; the loop
	// still runs so the LED blinks and the watchdog is fed.
	if err := machine.Setup(); err != nil {
		log.Errorf("%v", err)
	} else if a, err := dev.Read(); err == nil {
		log.Infof("acceleration x=%.3fg y=%.3fg z=%.3fg", a.X, a.Y, a.Z)
	}

	if machine.State() != logic.StateError {
		held, _ := board.SwitchPressed()
		if o.tapTest || held {
			tapTest(ctx, board, clock.KeepAlive, time.Now, sleepCtx)
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		opts := web.Options{Metrics: recorder.Handler()}
		if db != nil {
			opts.History = db
		}
		srv := web.New(cfg.HTTP.Addr, tracker, opts)
		n.live = srv.Hub()
		go srv.Hub().Run(ctx)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	d := loopDeps{
		machine:   machine,
		tracker:   tracker,
		metrics:   recorder,
		heartbeat: cfg.Heartbeat,
		now:       clock.Now,
		reload: func() (*config.Config, error) {
			return loadConfig(o)
		},
	}
	if publisher != nil {
		d.publisher = publisher
		d.mqttStatus = publisher
	}

	d.tracker.Update(machine.Snapshot())
	publishLifecycle(d, mqtt.EventStartup, "")

	log.Infof("started: node=%s session=%s debounce=%dmin sleep=%ds suspend=%s broker=%s",
		cfg.NodeID, sessionID, cfg.DebounceMin, cfg.SleepSeconds, cfg.Suspend.Mode, cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	d.tick = ticker.C

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	d.sig = sigCh

	return runLoop(ctx, d)
}

// rtcClock is the RTC as the state machine and the kernel suspender use it.
type rtcClock interface {
	power.Clock
	lowpower.Alarm
	Close() error
}

// openClock opens the RTC and arms the watchdog. On failure it logs and
// returns rtc.Unavailable, which fails the state machine's setup.
func openClock(name, watchdog string) rtcClock {
	clock, err := rtc.NewSysfs(name, watchdog)
	if err != nil {
		log.Errorf("init rtc: %v", err)
		return rtc.Unavailable{Err: err}
	}
	return clock
}

func statusConfig(cfg *config.Config, sessionID string) status.Config {
	return status.Config{
		NodeID:       cfg.NodeID,
		SessionID:    sessionID,
		DebounceMin:  cfg.DebounceMin,
		Sensitivity:  cfg.Sensitivity,
		SleepSeconds: cfg.SleepSeconds,
		TickMs:       cfg.Tick.Milliseconds(),
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
	}
}

// printState reads the sensor pin and the RTC once.
func printState(w io.Writer, sensor power.Sensor, clock power.Clock) error {
	high, err := sensor.ReadOccupancySignal()
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	valid := "valid"
	if !clock.IsClockValid() {
		valid = "not set"
	}
	fmt.Fprintf(w, "Sensor: %s, RTC: %s (%s)\n", levelString(high), clock.Now().UTC().Format(time.RFC3339), valid)
	return nil
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
