package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/metrics"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/repository"
	"battery_dashboard/internal/scheduler"
)

// Monitoring exposes read-only state.
type Monitoring interface {
	Telemetry() (models.BatteryTelemetry, bool)
	History() []models.PowerSample
	Dashboard() models.Dashboard
}

// EventLog exposes the activity log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ActivityEntry, error)
}

// Relay is the CommandDispatcher for the charger relay.
type Relay interface {
	RelayStatus() models.RelayStatus
	ToggleRelay(ctx context.Context, on bool) (Receipt, error)
	UpdateAutoShutoff(ctx context.Context, enabled bool, threshold *int) (models.RelayStatus, error)
}

// Mode switches and reports the device operating mode.
type Mode interface {
	Current() models.OperatingMode
	AllowsManualToggle() bool
	SwitchMode(ctx context.Context, mode models.OperatingMode) error
}

// Lifecycle ties polling to the presence of viewers.
type Lifecycle interface {
	Acquire() (release func())
	Polling() bool
	Viewers() int
}

// Service aggregates all sub-services.
type Service struct {
	Monitoring
	EventLog
	Relay
	Mode
	Lifecycle

	Notifier *repository.Notifier

	core   *core
	relay  *RelayService
	poller *Poller
	life   *LifecycleService
	once   sync.Once
}

// Deps carries the ambient collaborators. Nil fields get no-op defaults.
type Deps struct {
	Log     *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// NewService wires the repositories and the device into concrete services.
// Nothing runs until Start.
func NewService(repos *repository.Repository, device Device, opts Options, deps Deps) (*Service, error) {
	opts = opts.withDefaults()
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &core{
		repos:   repos,
		log:     deps.Log,
		metrics: deps.Metrics,
		now:     deps.Now,
	}
	c.loop = scheduler.New(0, func(r any) {
		c.log.Errorw("loop_task_panic", "panic", r)
	})

	mc := NewModeController(repos.Notifier)
	modeSvc := NewModeService(c, mc, device)
	relay := NewRelayService(c, device, mc, opts)
	poller, err := NewPoller(c, device, opts, relay.mirrorAutoOnLoop)
	if err != nil {
		return nil, fmt.Errorf("new poller: %w", err)
	}
	life := NewLifecycleService(c, poller, modeSvc, opts.AlwaysPoll)

	return &Service{
		Monitoring: NewMonitoringService(c, mc, life),
		EventLog:   NewEventLogService(repos.Activity),
		Relay:      relay,
		Mode:       modeSvc,
		Lifecycle:  life,
		Notifier:   repos.Notifier,
		core:       c,
		relay:      relay,
		poller:     poller,
		life:       life,
	}, nil
}

// Start launches the event loop, the relay sender and, when configured or
// already held, the pollers. Everything stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.core.loop.Run(ctx)
		go s.relay.runSender(ctx)
		s.core.loop.Post(func() {
			s.core.recordOnLoop(models.KindInfo, models.ActorSystem, "System started",
				"Battery monitoring dashboard active")
		})
		s.life.start(ctx)
		s.core.log.Infow("service_started")
	})
}

// Run starts the service and blocks until ctx is cancelled and the pollers
// have exited.
func (s *Service) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()
	<-s.core.loop.Done()
	s.life.Wait()
	s.core.log.Infow("service_stopped")
}

// Poller exposes the pollers for one-shot use (console refresh, tests).
func (s *Service) Poller() *Poller { return s.poller }

// Stopped reports whether the event loop has exited.
func (s *Service) Stopped() bool { return s.core.loop.Stopped() }
