package repository

import (
	"sync"

	"battery_dashboard/internal/models"
	"battery_dashboard/internal/ring"
)

// HistoryCapacity bounds the power chart history.
const HistoryCapacity = 20

// HistoryMemory is the HistoryRingBuffer: chronological, oldest evicted.
type HistoryMemory struct {
	mu      sync.RWMutex
	samples *ring.Ring[models.PowerSample]
	notify  *Notifier
}

func NewHistoryMemory(n *Notifier) *HistoryMemory {
	return &HistoryMemory{samples: ring.New[models.PowerSample](HistoryCapacity), notify: n}
}

func (r *HistoryMemory) Push(s models.PowerSample) {
	r.mu.Lock()
	r.samples.Push(s)
	r.mu.Unlock()
	r.notify.Publish(TopicHistory)
}

// List returns the samples in insertion (time) order.
func (r *HistoryMemory) List() []models.PowerSample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samples.Oldest()
}

func (r *HistoryMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samples.Len()
}
