package power

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/logic"
	"github.com/sweeney/occupancy-sensor/internal/rtc"
)

// ErrSetup marks a failed setup. The machine is in StateError afterwards.
var ErrSetup = errors.New("setup failed")

// ErrInvalidDebounceMin is returned for a debounce of less than one minute.
var ErrInvalidDebounceMin = errors.New("debounce must be at least 1 minute")

// Config holds the machine's tunables.
type Config struct {
	// DebounceMin drives both the idle-to-sleep gate and the occupancy
	// debounce window.
	DebounceMin int
	// Sensitivity is passed to Sensor.Setup untouched.
	Sensitivity int
	// SleepSeconds is the sleep quantum.
	SleepSeconds int64
}

// Deps are the machine's collaborators. Clock, Sensor, Scheduler and Wake are
// required; the rest may be nil.
type Deps struct {
	Clock     Clock
	Sensor    Sensor
	Scheduler *Scheduler
	Wake      Mailbox
	Persister Persister
	Indicator Indicator
	Battery   Battery
	Notifier  Notifier
}

// Snapshot is a copy of the machine's observable state.
type Snapshot struct {
	State         logic.PowerState
	Accumulator   logic.Accumulator
	Period        logic.OccupancyPeriod
	LastEventTime time.Time
	LastWake      logic.WakeReason
	WakeCounts    map[logic.WakeReason]int
	SleepCycles   int
	WakeTimeouts  int
	DebounceMin   int
}

// Machine is the power/occupancy state machine. It is owned by a single
// goroutine: every method must be called from the main loop.
type Machine struct {
	Deps
	cfg      Config
	detector *logic.Detector

	state         logic.PowerState
	prev          logic.PowerState
	lastEventTime time.Time
	sleepArmed    bool
	batteryLow    bool
	ledOn         bool
	ledSet        bool

	lastWake     logic.WakeReason
	wakeCounts   map[logic.WakeReason]int
	sleepCycles  int
	wakeTimeouts int

	holdLog  *rate.Limiter
	clockLog *rate.Limiter
}

// New creates a machine in StateIdle. Call Setup before the first Step.
func New(cfg Config, deps Deps) (*Machine, error) {
	if deps.Clock == nil || deps.Sensor == nil || deps.Scheduler == nil || deps.Wake == nil {
		return nil, errors.New("power: clock, sensor, scheduler and wake are required")
	}
	if cfg.DebounceMin < 1 {
		return nil, ErrInvalidDebounceMin
	}
	if cfg.SleepSeconds <= 0 {
		cfg.SleepSeconds = DefaultSleepSeconds
	}
	detector, err := logic.NewDetector(logic.DebounceFromMinutes(cfg.DebounceMin))
	if err != nil {
		return nil, err
	}
	return &Machine{
		Deps:       deps,
		cfg:        cfg,
		detector:   detector,
		state:      logic.StateIdle,
		prev:       logic.StateIdle,
		wakeCounts: make(map[logic.WakeReason]int),
		holdLog:    rate.NewLimiter(rate.Every(30*time.Second), 1),
		clockLog:   rate.NewLimiter(rate.Every(30*time.Second), 1),
	}, nil
}

// Setup verifies the clock, configures the sensor and restores persisted
// counters. Any failure moves the machine to StateError for good.
func (m *Machine) Setup() error {
	m.setIndicator(true)
	defer m.setIndicator(false)

	var errs []error
	if !m.Clock.IsClockValid() {
		errs = append(errs, errors.New("rtc: clock not set"))
	}
	if err := m.Sensor.Setup(m.cfg.Sensitivity); err != nil {
		errs = append(errs, fmt.Errorf("sensor: %w", err))
	}
	if m.Persister != nil {
		acc, ok, err := m.Persister.LoadAccumulator()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("store: %w", err))
		case ok:
			m.detector.Restore(acc)
			log.Infof("restored occupancy: net=%ds gross=%ds", acc.NetSeconds, acc.GrossSeconds)
		}
	}

	if len(errs) > 0 {
		m.state = logic.StateError
		return fmt.Errorf("%w: %w", ErrSetup, errors.Join(errs...))
	}

	m.lastEventTime = m.Clock.Now()
	log.Infof("setup complete in state %s (debounce=%dmin sensitivity=%d)", m.state, m.cfg.DebounceMin, m.cfg.Sensitivity)
	return nil
}

// Step runs one iteration of the control loop. A tick without a valid RTC
// reading only feeds the watchdog.
func (m *Machine) Step(ctx context.Context) {
	now, ok := m.now()
	if !ok && m.state != logic.StateError {
		if m.clockLog.Allow() {
			log.Warnf("rtc: no valid time, skipping tick")
		}
		m.keepAlive()
		return
	}

	if m.state != m.prev {
		tr := logic.Transition{From: m.prev, To: m.state, Time: now}
		m.prev = m.state
		log.Infof("state: from %s to %s", tr.From, tr.To)
		if m.Notifier != nil {
			m.Notifier.NotifyTransition(tr)
		}
	}

	switch m.state {
	case logic.StateIdle:
		m.stepIdle(now)
	case logic.StateSleeping:
		now = m.stepSleeping(ctx, now)
	case logic.StateLowBattery:
		m.state = logic.StateIdle
	case logic.StateError:
		m.blink(now, ok)
		m.keepAlive()
		return
	}

	m.service(now)
}

// now reads the RTC. A zero or pre-MinValidTime reading is a failed read.
func (m *Machine) now() (time.Time, bool) {
	t := m.Clock.Now()
	if t.IsZero() || t.Before(rtc.MinValidTime) {
		return time.Time{}, false
	}
	return t, true
}

func (m *Machine) keepAlive() {
	if err := m.Clock.KeepAlive(); err != nil {
		log.Warnf("watchdog: %v", err)
	}
}

func (m *Machine) stepIdle(now time.Time) {
	if m.sleepArmed {
		m.sleepArmed = false
		m.state = logic.StateSleeping
		return
	}

	if m.Battery != nil {
		low, err := m.Battery.Low()
		if err != nil {
			log.Debugf("battery: %v", err)
		} else {
			edge := low && !m.batteryLow
			m.batteryLow = low
			if edge {
				m.state = logic.StateLowBattery
				return
			}
		}
	}

	if logic.ElapsedSeconds(m.lastEventTime, now) > m.idleWindow() {
		log.Infof("idle longer than the debounce period (%d min), going to sleep", m.cfg.DebounceMin)
		m.lastEventTime = now
		m.sleepArmed = true
		m.setIndicator(false)
	}
}

// stepSleeping sleeps once the sensor pin is low and returns the time to
// poll the sensor with.
func (m *Machine) stepSleeping(ctx context.Context, now time.Time) time.Time {
	m.Wake.Clear()

	high, err := m.Sensor.ReadOccupancySignal()
	if err != nil {
		log.Warnf("sleep: read sensor: %v", err)
	} else if high {
		if m.holdLog.Allow() {
			log.Infof("sensor pin still high, delaying sleep")
		}
		return now
	}

	plan := m.Scheduler.PlanSleep(now, m.cfg.SleepSeconds)
	log.Infof("going to sleep for %d seconds", plan.DurationSeconds)

	if err := m.Scheduler.EnterSleep(ctx, plan); err != nil {
		if errors.Is(err, ErrWakeTimeout) {
			m.wakeTimeouts++
		}
		log.Warnf("wake: %v", err)
	}
	m.sleepCycles++

	reason := m.Wake.TakeReason()
	m.lastWake = reason
	m.wakeCounts[reason]++
	if reason == logic.WakeNone {
		log.Infof("woke up without an interrupt, going to idle")
	} else {
		log.Infof("woke up for %s", reason)
	}

	if t, ok := m.now(); ok {
		m.lastEventTime = t
	} else {
		m.lastEventTime = now.Add(plan.Duration())
	}
	m.state = logic.StateIdle
	return m.lastEventTime
}

// service keeps the watchdog fed, polls the sensor and flushes the counters.
func (m *Machine) service(now time.Time) {
	m.keepAlive()

	raw, err := m.Sensor.ReadOccupancySignal()
	if err != nil {
		log.Warnf("read sensor: %v", err)
		return
	}
	if raw {
		if err := m.Sensor.ClearInterruptLatch(); err != nil {
			log.Warnf("clear sensor latch: %v", err)
		}
	}

	was := m.detector.Period()
	before := m.detector.Accumulator().NetSeconds
	active := m.detector.Poll(raw, now)

	switch {
	case active && !was.Active:
		log.Infof("starting a new occupancy period at %d", now.Unix())
	case !active && was.Active:
		acc := m.detector.Accumulator()
		closed := PeriodClosed{
			Start:       was.Start,
			End:         now,
			Seconds:     acc.NetSeconds - before,
			Accumulator: acc,
		}
		log.Infof("occupancy period ended after %ds, total occupancy is %ds", closed.Seconds, acc.NetSeconds)
		if m.Notifier != nil {
			m.Notifier.NotifyPeriodClosed(closed)
		}
	}

	m.flush()
}

func (m *Machine) flush() {
	acc := m.detector.Accumulator()
	if !acc.Dirty || m.Persister == nil {
		return
	}
	if err := m.Persister.SaveAccumulator(acc); err != nil {
		log.Warnf("persist occupancy: %v", err)
		return
	}
	m.detector.MarkFlushed()
}

// blink drives the indicator: on for even RTC seconds, or toggled every
// tick when the RTC has no valid time.
func (m *Machine) blink(now time.Time, valid bool) {
	if !valid {
		m.setIndicator(!m.ledOn)
		return
	}
	m.setIndicator(now.Unix()%2 == 0)
}

func (m *Machine) setIndicator(on bool) {
	if m.Indicator == nil || (m.ledSet && on == m.ledOn) {
		return
	}
	if err := m.Indicator.Set(on); err != nil {
		log.Debugf("indicator: %v", err)
		return
	}
	m.ledOn = on
	m.ledSet = true
}

func (m *Machine) idleWindow() int64 {
	return int64(m.cfg.DebounceMin) * 60
}

// SetDebounceMin changes the debounce used by the idle gate and the detector.
func (m *Machine) SetDebounceMin(min int) error {
	if min < 1 {
		return ErrInvalidDebounceMin
	}
	if err := m.detector.SetDebounce(logic.DebounceFromMinutes(min)); err != nil {
		return err
	}
	m.cfg.DebounceMin = min
	return nil
}

// State returns the current state.
func (m *Machine) State() logic.PowerState {
	return m.state
}

// Snapshot returns a copy of the observable state.
func (m *Machine) Snapshot() Snapshot {
	counts := make(map[logic.WakeReason]int, len(m.wakeCounts))
	for r, n := range m.wakeCounts {
		counts[r] = n
	}
	return Snapshot{
		State:         m.state,
		Accumulator:   m.detector.Accumulator(),
		Period:        m.detector.Period(),
		LastEventTime: m.lastEventTime,
		LastWake:      m.lastWake,
		WakeCounts:    counts,
		SleepCycles:   m.sleepCycles,
		WakeTimeouts:  m.wakeTimeouts,
		DebounceMin:   m.cfg.DebounceMin,
	}
}
