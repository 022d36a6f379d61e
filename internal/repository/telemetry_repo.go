package repository

import (
	"sync"

	"battery_dashboard/internal/models"
)

// TelemetryMemory is the in-memory TelemetryStore.
type TelemetryMemory struct {
	mu     sync.RWMutex
	latest models.BatteryTelemetry
	ok     bool
	notify *Notifier
}

func NewTelemetryMemory(n *Notifier) *TelemetryMemory {
	return &TelemetryMemory{notify: n}
}

// Save replaces the current snapshot wholesale.
func (r *TelemetryMemory) Save(t models.BatteryTelemetry) {
	r.mu.Lock()
	r.latest = t
	r.ok = true
	r.mu.Unlock()
	r.notify.Publish(TopicTelemetry)
}

// Load returns the latest snapshot. Before the first successful poll it
// returns a zero snapshot with status not_charging and ok=false.
func (r *TelemetryMemory) Load() (models.BatteryTelemetry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ok {
		return models.BatteryTelemetry{Status: models.StatusNotCharging}, false
	}
	return r.latest, true
}
