// Package config loads the daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when -config is not given.
const DefaultPath = "/etc/occupancy-sensor.yaml"

// SuspendTimer selects the timer suspender instead of a kernel suspend.
const SuspendTimer = "timer"

// SuspendModes lists the accepted suspend.mode values.
var SuspendModes = []string{"freeze", "standby", "mem", SuspendTimer}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config represents the daemon configuration.
type Config struct {
	NodeID       string        `yaml:"node_id"`
	DebounceMin  int           `yaml:"debounce_min"`
	Sensitivity  int           `yaml:"sensitivity"`
	SleepSeconds int64         `yaml:"sleep_seconds"`
	Tick         time.Duration `yaml:"tick"`
	WakeTimeout  time.Duration `yaml:"wake_timeout"`
	Heartbeat    time.Duration `yaml:"heartbeat"`

	GPIO    GPIOConfig    `yaml:"gpio"`
	I2C     I2CConfig     `yaml:"i2c"`
	RTC     RTCConfig     `yaml:"rtc"`
	Suspend SuspendConfig `yaml:"suspend"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Console ConsoleConfig `yaml:"console"`
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Battery BatteryConfig `yaml:"battery"`
}

// GPIOConfig holds the line offsets. A negative offset disables the line.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	IntPin    int    `yaml:"int_pin"`
	SwitchPin int    `yaml:"switch_pin"`
	WakePin   int    `yaml:"wake_pin"`
	LEDPin    int    `yaml:"led_pin"`
}

// I2CConfig locates the accelerometer.
type I2CConfig struct {
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
}

// RTCConfig names the RTC and the watchdog device.
type RTCConfig struct {
	Name     string `yaml:"name"`
	Watchdog string `yaml:"watchdog"`
}

// SuspendConfig selects the low-power primitive.
type SuspendConfig struct {
	Mode string `yaml:"mode"`
}

// MQTTConfig represents the broker connection. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// ConsoleConfig is the serial diagnostics console. An empty device disables it.
type ConsoleConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// HTTPConfig is the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig locates the SQLite database. An empty path disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BatteryConfig names the power supply. An empty supply disables monitoring.
type BatteryConfig struct {
	Supply     string `yaml:"supply"`
	LowPercent int    `yaml:"low_percent"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		NodeID:       "occupancy-sensor",
		DebounceMin:  1,
		Sensitivity:  1,
		SleepSeconds: 60,
		Tick:         100 * time.Millisecond,
		WakeTimeout:  5 * time.Second,
		Heartbeat:    15 * time.Minute,
		GPIO: GPIOConfig{
			Chip:      "gpiochip0",
			IntPin:    17,
			SwitchPin: 27,
			WakePin:   22,
			LEDPin:    23,
		},
		I2C:     I2CConfig{Bus: "/dev/i2c-1", Address: 0x1D},
		RTC:     RTCConfig{Name: "rtc0", Watchdog: "/dev/watchdog"},
		Suspend: SuspendConfig{Mode: "mem"},
		MQTT:    MQTTConfig{Broker: "tcp://192.168.1.200:1883", ClientID: "occupancy-sensor"},
		Console: ConsoleConfig{Baud: 115200},
		HTTP:    HTTPConfig{Addr: ":80"},
		Store:   StoreConfig{Path: "/var/lib/occupancy-sensor/occupancy.db"},
		Battery: BatteryConfig{LowPercent: 15},
	}
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("OCCUPANCY_NODE_ID"); id != "" {
		c.NodeID = id
	}
	if broker := os.Getenv("OCCUPANCY_MQTT_BROKER"); broker != "" {
		c.MQTT.Broker = broker
	}
}

// Validate checks the values the daemon cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.DebounceMin < 1 {
		errs = append(errs, fmt.Errorf("debounce_min must be at least 1, got %d", c.DebounceMin))
	}
	if c.SleepSeconds <= 0 {
		errs = append(errs, fmt.Errorf("sleep_seconds must be positive, got %d", c.SleepSeconds))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %v", c.Tick))
	}
	if c.WakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("wake_timeout must be positive, got %v", c.WakeTimeout))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if !slices.Contains(SuspendModes, c.Suspend.Mode) {
		errs = append(errs, fmt.Errorf("suspend.mode %q not one of %v", c.Suspend.Mode, SuspendModes))
	}
	if c.Battery.LowPercent < 0 || c.Battery.LowPercent > 100 {
		errs = append(errs, fmt.Errorf("battery.low_percent out of range: %d", c.Battery.LowPercent))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
