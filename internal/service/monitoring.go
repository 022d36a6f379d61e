package service

import (
	"battery_dashboard/internal/models"
)

type MonitoringService struct {
	*core
	mode *ModeController
	life *LifecycleService
}

func NewMonitoringService(c *core, mode *ModeController, life *LifecycleService) *MonitoringService {
	return &MonitoringService{core: c, mode: mode, life: life}
}

// Telemetry returns the latest snapshot; ok is false before the first
// successful poll.
func (s *MonitoringService) Telemetry() (models.BatteryTelemetry, bool) {
	return s.repos.Telemetry.Load()
}

// History returns the power samples, oldest first.
func (s *MonitoringService) History() []models.PowerSample {
	return s.repos.History.List()
}

// Dashboard assembles a read-only view of the whole state container.
// Each part is individually consistent; the parts may come from adjacent
// loop turns.
func (s *MonitoringService) Dashboard() models.Dashboard {
	t, ok := s.repos.Telemetry.Load()
	return models.Dashboard{
		Telemetry:    t,
		HasTelemetry: ok,
		Relay:        s.repos.Relay.Load(),
		Mode:         s.mode.Current(),
		History:      s.repos.History.List(),
		Activity:     s.repos.Activity.List(),
		Polling:      s.life.Polling(),
		GeneratedAt:  s.now().UTC(),
	}
}
