package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "occupancy-sensor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.DebounceMin != def.DebounceMin || cfg.Tick != def.Tick || cfg.Suspend.Mode != def.Suspend.Mode {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
node_id: hall
debounce_min: 5
sensitivity: 20
tick: 250ms
wake_timeout: 3s
heartbeat: 0s
gpio:
  int_pin: 5
  led_pin: -1
i2c:
  address: 0x1C
suspend:
  mode: timer
mqtt:
  broker: tcp://broker.local:1883
store:
  path: ""
battery:
  supply: BAT0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.NodeID != "hall" {
		t.Errorf("NodeID: got %q", cfg.NodeID)
	}
	if cfg.DebounceMin != 5 || cfg.Sensitivity != 20 {
		t.Errorf("debounce/sensitivity: got %d/%d", cfg.DebounceMin, cfg.Sensitivity)
	}
	if cfg.Tick != 250*time.Millisecond {
		t.Errorf("Tick: got %v", cfg.Tick)
	}
	if cfg.WakeTimeout != 3*time.Second {
		t.Errorf("WakeTimeout: got %v", cfg.WakeTimeout)
	}
	if cfg.Heartbeat != 0 {
		t.Errorf("Heartbeat: got %v, want disabled", cfg.Heartbeat)
	}
	if cfg.GPIO.IntPin != 5 || cfg.GPIO.LEDPin != -1 {
		t.Errorf("GPIO: got %+v", cfg.GPIO)
	}
	// Keys absent from the file keep their defaults.
	if cfg.GPIO.SwitchPin != 27 || cfg.GPIO.Chip != "gpiochip0" {
		t.Errorf("GPIO defaults lost: %+v", cfg.GPIO)
	}
	if cfg.I2C.Address != 0x1C || cfg.I2C.Bus != "/dev/i2c-1" {
		t.Errorf("I2C: got %+v", cfg.I2C)
	}
	if cfg.Suspend.Mode != SuspendTimer {
		t.Errorf("Suspend.Mode: got %q", cfg.Suspend.Mode)
	}
	if cfg.MQTT.Broker != "tcp://broker.local:1883" || cfg.MQTT.ClientID != "occupancy-sensor" {
		t.Errorf("MQTT: got %+v", cfg.MQTT)
	}
	if cfg.Store.Path != "" {
		t.Errorf("Store.Path: got %q, want disabled", cfg.Store.Path)
	}
	if cfg.Battery.Supply != "BAT0" || cfg.Battery.LowPercent != 15 {
		t.Errorf("Battery: got %+v", cfg.Battery)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OCCUPANCY_NODE_ID", "kitchen")
	t.Setenv("OCCUPANCY_MQTT_BROKER", "tcp://10.0.0.2:1883")

	cfg, err := Load(writeConfig(t, "node_id: hall\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "kitchen" {
		t.Errorf("NodeID: got %q, want kitchen", cfg.NodeID)
	}
	if cfg.MQTT.Broker != "tcp://10.0.0.2:1883" {
		t.Errorf("Broker: got %q", cfg.MQTT.Broker)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "debounce_min: [1, 2\n"))
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
	if errors.Is(err, ErrInvalid) {
		t.Error("parse errors are not validation errors")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero debounce", func(c *Config) { c.DebounceMin = 0 }, "debounce_min"},
		{"zero sleep", func(c *Config) { c.SleepSeconds = 0 }, "sleep_seconds"},
		{"zero tick", func(c *Config) { c.Tick = 0 }, "tick"},
		{"zero wake timeout", func(c *Config) { c.WakeTimeout = 0 }, "wake_timeout"},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = -time.Second }, "heartbeat"},
		{"unknown suspend mode", func(c *Config) { c.Suspend.Mode = "hibernate" }, "suspend.mode"},
		{"battery threshold", func(c *Config) { c.Battery.LowPercent = 101 }, "low_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.DebounceMin = 0
	cfg.Tick = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"debounce_min", "tick"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "debounce_min: 0\n"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
