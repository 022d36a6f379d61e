package repository

import (
	"sync"

	"battery_dashboard/internal/models"
)

// RelayMemory holds the current RelayStatus.
type RelayMemory struct {
	mu     sync.RWMutex
	status models.RelayStatus
	notify *Notifier
}

func NewRelayMemory(initial models.RelayStatus, n *Notifier) *RelayMemory {
	return &RelayMemory{status: initial, notify: n}
}

func (r *RelayMemory) Save(s models.RelayStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
	r.notify.Publish(TopicRelay)
}

func (r *RelayMemory) Load() models.RelayStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
