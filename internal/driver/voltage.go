// internal/driver/voltage.go
package driver

import (
	"fmt"
	"strings"
)

// VoltageRange is the analog config code sent with each scanned channel.
type VoltageRange uint16

const (
	Bipolar10V     VoltageRange = 0
	Bipolar5V      VoltageRange = 1
	Bipolar2_5V    VoltageRange = 2
	Bipolar1_25V   VoltageRange = 3
	Bipolar0_625V  VoltageRange = 4
	Bipolar0_3125V VoltageRange = 5
	Bipolar0_5V    VoltageRange = 6
	Bipolar0_05V   VoltageRange = 7
	Bipolar0_005V  VoltageRange = 8
	Bipolar1V      VoltageRange = 9
	Bipolar0_1V    VoltageRange = 10
	Bipolar0_01V   VoltageRange = 11
	Bipolar0_001V  VoltageRange = 12
	Unipolar20V    VoltageRange = 13
	Unipolar10V    VoltageRange = 14
	Unipolar5V     VoltageRange = 15
	Unipolar2_5V   VoltageRange = 16
	Unipolar1_25V  VoltageRange = 17
	Unipolar0_625V VoltageRange = 18
	Unipolar1V     VoltageRange = 19
	Unipolar0_1V   VoltageRange = 20
	Unipolar0_01V  VoltageRange = 21
	Unipolar0_001V VoltageRange = 22
	Bipolar20V     VoltageRange = 23
)

type rangeInfo struct {
	key       string
	desc      string
	fullScale float64
	bipolar   bool
}

var ranges = map[VoltageRange]rangeInfo{
	Bipolar10V:     {"bipolar_10v", "Bipolar ±10V", 10, true},
	Bipolar20V:     {"bipolar_20v", "Bipolar ±20V", 20, true},
	Bipolar5V:      {"bipolar_5v", "Bipolar ±5V", 5, true},
	Bipolar2_5V:    {"bipolar_2.5v", "Bipolar ±2.5V", 2.5, true},
	Bipolar1_25V:   {"bipolar_1.25v", "Bipolar ±1.25V", 1.25, true},
	Bipolar0_625V:  {"bipolar_0.625v", "Bipolar ±0.625V", 0.625, true},
	Bipolar0_3125V: {"bipolar_0.3125v", "Bipolar ±0.3125V", 0.3125, true},
	Bipolar0_5V:    {"bipolar_0.5v", "Bipolar ±0.5V", 0.5, true},
	Bipolar0_05V:   {"bipolar_0.05v", "Bipolar ±0.05V", 0.05, true},
	Bipolar0_005V:  {"bipolar_0.005v", "Bipolar ±0.005V", 0.005, true},
	Bipolar1V:      {"bipolar_1v", "Bipolar ±1V", 1, true},
	Bipolar0_1V:    {"bipolar_0.1v", "Bipolar ±0.1V", 0.1, true},
	Bipolar0_01V:   {"bipolar_0.01v", "Bipolar ±0.01V", 0.01, true},
	Bipolar0_001V:  {"bipolar_0.001v", "Bipolar ±0.001V", 0.001, true},
	Unipolar20V:    {"unipolar_20v", "Unipolar 0-20V", 20, false},
	Unipolar10V:    {"unipolar_10v", "Unipolar 0-10V", 10, false},
	Unipolar5V:     {"unipolar_5v", "Unipolar 0-5V", 5, false},
	Unipolar2_5V:   {"unipolar_2.5v", "Unipolar 0-2.5V", 2.5, false},
	Unipolar1_25V:  {"unipolar_1.25v", "Unipolar 0-1.25V", 1.25, false},
	Unipolar0_625V: {"unipolar_0.625v", "Unipolar 0-0.625V", 0.625, false},
	Unipolar1V:     {"unipolar_1v", "Unipolar 0-1V", 1, false},
	Unipolar0_1V:   {"unipolar_0.1v", "Unipolar 0-0.1V", 0.1, false},
	Unipolar0_01V:  {"unipolar_0.01v", "Unipolar 0-0.01V", 0.01, false},
	Unipolar0_001V: {"unipolar_0.001v", "Unipolar 0-0.001V", 0.001, false},
}

// Valid reports whether r is a known config code.
func (r VoltageRange) Valid() bool {
	_, ok := ranges[r]
	return ok
}

// String returns the display description.
func (r VoltageRange) String() string {
	if info, ok := ranges[r]; ok {
		return info.desc
	}
	return fmt.Sprintf("VoltageRange(%d)", uint16(r))
}

// Key returns the config-file spelling, e.g. "bipolar_10v".
func (r VoltageRange) Key() string {
	return ranges[r].key
}

// FullScale returns the magnitude of the range in volts.
func (r VoltageRange) FullScale() float64 {
	return ranges[r].fullScale
}

// Bipolar reports whether the range spans negative voltages.
func (r VoltageRange) Bipolar() bool {
	return ranges[r].bipolar
}

// Code returns the config code passed to the driver.
func (r VoltageRange) Code() uint16 { return uint16(r) }

// ParseVoltageRange accepts a config key ("unipolar_5v") and is
// case-insensitive. An empty string means Bipolar10V.
func ParseVoltageRange(s string) (VoltageRange, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Bipolar10V, nil
	}
	for r, info := range ranges {
		if info.key == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("driver: unknown voltage range %q", s)
}
