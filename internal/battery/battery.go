// Package battery reads the battery level from the kernel power supply class.
package battery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultLowPercent is the capacity at or below which the battery is low.
const DefaultLowPercent = 15

// ErrNotBattery is returned for a supply that is not a battery.
var ErrNotBattery = errors.New("power supply is not a battery")

// Sysfs reads /sys/class/power_supply/<name>.
type Sysfs struct {
	dir        string
	lowPercent int
}

// NewSysfs opens the named supply. lowPercent <= 0 selects DefaultLowPercent.
func NewSysfs(name string, lowPercent int) (*Sysfs, error) {
	return newSysfs(filepath.Join("/sys/class/power_supply", name), lowPercent)
}

func newSysfs(dir string, lowPercent int) (*Sysfs, error) {
	if lowPercent <= 0 {
		lowPercent = DefaultLowPercent
	}
	typ, err := readString(filepath.Join(dir, "type"))
	if err != nil {
		return nil, err
	}
	if typ != "Battery" {
		return nil, fmt.Errorf("%w: %s is %q", ErrNotBattery, dir, typ)
	}
	return &Sysfs{dir: dir, lowPercent: lowPercent}, nil
}

// Capacity returns the charge in percent.
func (s *Sysfs) Capacity() (int, error) {
	v, err := readString(filepath.Join(s.dir, "capacity"))
	if err != nil {
		return 0, err
	}
	pct, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse capacity %q: %w", v, err)
	}
	return pct, nil
}

// Low reports whether the capacity is at or below the threshold.
func (s *Sysfs) Low() (bool, error) {
	pct, err := s.Capacity()
	if err != nil {
		return false, err
	}
	return pct <= s.lowPercent, nil
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
