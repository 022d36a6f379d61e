package repository

import (
	"battery_dashboard/internal/models"
)

type TelemetryStore interface {
	Save(t models.BatteryTelemetry)
	Load() (models.BatteryTelemetry, bool)
}

type RelayStore interface {
	Save(s models.RelayStatus)
	Load() models.RelayStatus
}

type ActivityLog interface {
	Append(e models.ActivityEntry) models.ActivityEntry
	List() []models.ActivityEntry
	Len() int
}

type HistoryBuffer interface {
	Push(s models.PowerSample)
	List() []models.PowerSample
	Len() int
}

// Repository is the dashboard state container.
type Repository struct {
	Telemetry TelemetryStore
	Relay     RelayStore
	Activity  ActivityLog
	History   HistoryBuffer
	Notifier  *Notifier
}

// NewRepository builds empty in-memory stores sharing one notifier.
func NewRepository(initialRelay models.RelayStatus, n *Notifier) *Repository {
	if n == nil {
		n = NewNotifier(0)
	}
	return &Repository{
		Telemetry: NewTelemetryMemory(n),
		Relay:     NewRelayMemory(initialRelay, n),
		Activity:  NewActivityMemory(n),
		History:   NewHistoryMemory(n),
		Notifier:  n,
	}
}
