package service

import (
	"time"

	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/metrics"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/repository"
	"battery_dashboard/internal/scheduler"
)

// core is the state shared by the sub-services. Methods suffixed with
// OnLoop must only run inside a scheduler task.
type core struct {
	loop    *scheduler.Loop
	repos   *repository.Repository
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// recordOnLoop appends one activity entry.
func (c *core) recordOnLoop(kind models.LogKind, actor, action, details string) models.ActivityEntry {
	e := c.repos.Activity.Append(models.ActivityEntry{
		Timestamp: c.now(),
		Action:    action,
		Actor:     actor,
		Details:   details,
		Kind:      kind,
		Source:    models.SourceLocal,
	})
	c.metrics.ObserveEntry(string(e.Kind))
	return e
}
