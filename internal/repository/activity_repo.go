package repository

import (
	"strings"
	"sync"
	"time"

	"battery_dashboard/internal/models"
	"battery_dashboard/internal/ring"

	"github.com/google/uuid"
)

// ActivityCapacity bounds the audit log.
const ActivityCapacity = 50

// ActivityMemory is the in-memory ActivityLog: newest first, oldest evicted
// past ActivityCapacity.
type ActivityMemory struct {
	mu      sync.RWMutex
	entries *ring.Ring[models.ActivityEntry]
	notify  *Notifier
}

func NewActivityMemory(n *Notifier) *ActivityMemory {
	return &ActivityMemory{
		entries: ring.New[models.ActivityEntry](ActivityCapacity),
		notify:  n,
	}
}

// Append records e at the front of the log. If ID or Timestamp are empty,
// they're set. The stored copy is returned.
func (r *ActivityMemory) Append(e models.ActivityEntry) models.ActivityEntry {
	if e.ID == "" {
		e.ID = newEntryID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	} else {
		e.Timestamp = e.Timestamp.UTC()
	}
	if e.Kind == "" {
		e.Kind = models.KindInfo
	}
	if e.Source == "" {
		e.Source = models.SourceLocal
	}
	e.Action = strings.TrimSpace(e.Action)

	r.mu.Lock()
	r.entries.Push(e)
	r.mu.Unlock()
	r.notify.Publish(TopicActivity)
	return e
}

// List returns the log, most recent first.
func (r *ActivityMemory) List() []models.ActivityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Newest()
}

func (r *ActivityMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Len()
}

// newEntryID returns a time-ordered UUID, falling back to a random one.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
