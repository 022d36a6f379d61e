package service

import (
	"context"
	"sync"

	"battery_dashboard/internal/repository"
)

// LifecycleService keeps the pollers running while at least one holder has
// the dashboard active. Each activation gets a fresh generation context; the
// last release cancels it, which also cancels in-flight requests.
type LifecycleService struct {
	*core
	poller *Poller
	mode   *ModeService
	always bool

	mu      sync.Mutex
	root    context.Context
	holders int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLifecycleService(c *core, poller *Poller, mode *ModeService, always bool) *LifecycleService {
	return &LifecycleService{core: c, poller: poller, mode: mode, always: always}
}

// start binds the lifecycle to the service root context.
func (l *LifecycleService) start(root context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.root = root
	l.reconcileLocked()

	go func() {
		<-root.Done()
		l.mu.Lock()
		l.stopLocked()
		l.mu.Unlock()
	}()
}

// Acquire marks the dashboard active until the returned release is called.
// Release is idempotent.
func (l *LifecycleService) Acquire() (release func()) {
	l.mu.Lock()
	l.holders++
	l.metrics.SetViewers(l.holders)
	l.reconcileLocked()
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holders--
			l.metrics.SetViewers(l.holders)
			l.reconcileLocked()
			l.mu.Unlock()
		})
	}
}

// Polling reports whether the pollers are running.
func (l *LifecycleService) Polling() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil && l.root != nil && l.root.Err() == nil
}

// Viewers returns the number of active holders.
func (l *LifecycleService) Viewers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holders
}

// Wait blocks until every generation started so far has exited.
func (l *LifecycleService) Wait() { l.wg.Wait() }

func (l *LifecycleService) reconcileLocked() {
	want := l.root != nil && l.root.Err() == nil && (l.holders > 0 || l.always)
	switch {
	case want && l.cancel == nil:
		l.startLocked()
	case !want && l.cancel != nil:
		l.stopLocked()
	}
}

func (l *LifecycleService) startLocked() {
	gen, cancel := context.WithCancel(l.root)
	l.cancel = cancel
	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		l.poller.Run(gen)
	}()
	go func() {
		defer l.wg.Done()
		l.mode.syncMode(gen)
	}()
	l.log.Infow("polling_started", "viewers", l.holders, "always", l.always)
	l.repos.Notifier.Publish(repository.TopicPolling)
}

func (l *LifecycleService) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.log.Infow("polling_stopped", "viewers", l.holders)
	l.repos.Notifier.Publish(repository.TopicPolling)
}
