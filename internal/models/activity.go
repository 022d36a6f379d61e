package models

import "time"

// LogKind classifies an activity entry.
type LogKind string

const (
	KindInfo    LogKind = "info"
	KindWarning LogKind = "warning"
	KindError   LogKind = "error"
	KindSuccess LogKind = "success"
)

// ParseLogKind maps device level names onto LogKind, defaulting to info.
func ParseLogKind(s string) LogKind {
	switch s {
	case "success", "ok":
		return KindSuccess
	case "warning", "warn":
		return KindWarning
	case "error", "err", "fatal", "critical":
		return KindError
	default:
		return KindInfo
	}
}

// Actors that originate local entries.
const (
	ActorAdmin  = "Admin"
	ActorSystem = "System"
	ActorAuto   = "Auto"
	ActorDevice = "Device"
)

// Entry sources.
const (
	SourceLocal  = "local"
	SourceDevice = "device"
)

// ActivityEntry is a single audit log record.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`  // short label
	Actor     string    `json:"actor"`   // who or what originated it
	Details   string    `json:"details"` // human-readable
	Kind      LogKind   `json:"kind"`    // info | warning | error | success
	Source    string    `json:"source"`  // local | device
}
