package models

import (
	"strings"
	"time"
)

// BatteryStatus is the charge state reported by the device.
type BatteryStatus string

const (
	StatusCharging    BatteryStatus = "charging"
	StatusDischarging BatteryStatus = "discharging"
	StatusFull        BatteryStatus = "full"
	StatusNotCharging BatteryStatus = "not_charging"
)

// ParseBatteryStatus accepts the canonical values case-insensitively.
func ParseBatteryStatus(s string) (BatteryStatus, bool) {
	switch st := BatteryStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusCharging, StatusDischarging, StatusFull, StatusNotCharging:
		return st, true
	}
	return "", false
}

// BatteryTelemetry is one snapshot produced by a telemetry poll.
// Snapshots replace each other wholesale; optional fields are nil when the
// device did not report them in that poll.
type BatteryTelemetry struct {
	Percentage    float64       `json:"percentage"`     // 0..100
	Status        BatteryStatus `json:"status"`         // charging | discharging | full | not_charging
	TimeRemaining int           `json:"time_remaining"` // minutes
	Voltage       *float64      `json:"voltage,omitempty"`
	Current       *float64      `json:"current,omitempty"`
	Power         *float64      `json:"power,omitempty"`
	TemperatureC  *float64      `json:"temperature_c,omitempty"`
	HealthPercent *float64      `json:"health_percent,omitempty"`
	CycleCount    *int          `json:"cycle_count,omitempty"`
	ReceivedAt    time.Time     `json:"received_at"`
}

// PowerWatts returns the reported power or 0 when absent.
func (t BatteryTelemetry) PowerWatts() float64 {
	if t.Power == nil {
		return 0
	}
	return *t.Power
}

// CurrentAmps returns the reported current or 0 when absent.
func (t BatteryTelemetry) CurrentAmps() float64 {
	if t.Current == nil {
		return 0
	}
	return *t.Current
}
