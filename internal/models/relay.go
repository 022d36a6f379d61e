package models

import (
	"strings"
	"time"
)

// RelayStatus is the dashboard's view of the charger relay.
// IsConnected is either a confirmed device state or an optimistic guess;
// Pending is true while at least one relay command awaits confirmation.
type RelayStatus struct {
	IsConnected          bool      `json:"is_connected"`
	LastToggle           time.Time `json:"last_toggle"`
	AutoShutoffEnabled   bool      `json:"auto_shutoff_enabled"`
	AutoShutoffThreshold int       `json:"auto_shutoff_threshold"` // percent
	Pending              bool      `json:"pending"`
}

// OperatingMode is the device control mode. The device owns the
// authoritative value; the dashboard caches the last confirmed one.
type OperatingMode string

const (
	ModeManual OperatingMode = "MANUAL"
	ModeAuto   OperatingMode = "AUTO"
)

// ParseMode normalizes s and reports whether it names a known mode.
func ParseMode(s string) (OperatingMode, bool) {
	switch m := OperatingMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeManual, ModeAuto:
		return m, true
	}
	return "", false
}
