package models

import "time"

// Dashboard is a read-only snapshot of the whole state container.
type Dashboard struct {
	Telemetry    BatteryTelemetry `json:"telemetry"`
	HasTelemetry bool             `json:"has_telemetry"`
	Relay        RelayStatus      `json:"relay"`
	Mode         OperatingMode    `json:"mode"`
	History      []PowerSample    `json:"history"`
	Activity     []ActivityEntry  `json:"activity"`
	Polling      bool             `json:"polling"`
	GeneratedAt  time.Time        `json:"generated_at"`
}
