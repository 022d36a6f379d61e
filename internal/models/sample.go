package models

import "time"

// PowerSample is one chart point taken from a telemetry poll.
type PowerSample struct {
	Time    string    `json:"time"` // HH:MM:SS label
	Power   float64   `json:"power"`
	Current float64   `json:"current"`
	At      time.Time `json:"at"`
}
