package service

import (
	"context"
	"fmt"
	"sync"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/repository"
)

// ModeController caches the last confirmed device operating mode.
type ModeController struct {
	mu      sync.RWMutex
	mode    models.OperatingMode
	version uint64
	notify  *repository.Notifier
}

func NewModeController(n *repository.Notifier) *ModeController {
	return &ModeController{mode: models.ModeManual, notify: n}
}

// Current returns the cached mode.
func (m *ModeController) Current() models.OperatingMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// AllowsManualToggle reports whether manual relay toggles should be offered.
func (m *ModeController) AllowsManualToggle() bool {
	return m.Current() == models.ModeManual
}

func (m *ModeController) snapshot() (models.OperatingMode, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode, m.version
}

// set stores a confirmed mode and reports whether it changed.
func (m *ModeController) set(mode models.OperatingMode) bool {
	m.mu.Lock()
	changed := m.mode != mode
	m.mode = mode
	m.version++
	m.mu.Unlock()
	if changed {
		m.notify.Publish(repository.TopicMode)
	}
	return changed
}

// setIfUnchanged stores mode only when no confirmation landed since version.
func (m *ModeController) setIfUnchanged(mode models.OperatingMode, version uint64) bool {
	m.mu.Lock()
	if m.version != version || m.mode == mode {
		m.mu.Unlock()
		return false
	}
	m.mode = mode
	m.version++
	m.mu.Unlock()
	m.notify.Publish(repository.TopicMode)
	return true
}

// ModeService implements the pessimistic mode switch.
type ModeService struct {
	*core
	*ModeController
	device Device
}

func NewModeService(c *core, mc *ModeController, device Device) *ModeService {
	return &ModeService{core: c, ModeController: mc, device: device}
}

// SwitchMode asks the device to change mode and caches the result only once
// the device confirms. Exactly one activity entry is recorded either way.
func (s *ModeService) SwitchMode(ctx context.Context, mode models.OperatingMode) error {
	mode, ok := models.ParseMode(string(mode))
	if !ok {
		return ErrInvalidMode
	}
	if s.loop.Stopped() {
		return ErrLoopStopped
	}

	err := s.device.SetMode(ctx, mode)
	s.metrics.ObserveCommand("mode", err)

	applyErr := s.loop.Do(context.WithoutCancel(ctx), func() {
		if err != nil {
			s.recordOnLoop(models.KindError, models.ActorAdmin, "Mode change failed",
				fmt.Sprintf("Failed to switch to %s mode: %s", mode, client.Cause(err)))
			return
		}
		s.set(mode)
		s.metrics.SetModeAuto(mode == models.ModeAuto)
		s.recordOnLoop(models.KindSuccess, models.ActorAdmin, "Mode changed",
			fmt.Sprintf("Device switched to %s mode", mode))
	})
	if err != nil {
		s.log.Warnw("mode_switch_failed", "mode", mode, "kind", client.KindOf(err), "err", err)
		return fmt.Errorf("switch to %s: %w", mode, err)
	}
	if applyErr != nil {
		return applyErr
	}
	s.log.Infow("mode_switched", "mode", mode)
	return nil
}

// syncMode reads the device mode and adopts it unless a switch was
// confirmed while the request was in flight or ctx was cancelled.
func (s *ModeService) syncMode(ctx context.Context) {
	_, version := s.snapshot()
	mode, err := s.device.GetMode(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warnw("mode_sync_failed", "kind", client.KindOf(err), "err", err)
		}
		return
	}
	s.loop.Post(func() {
		if ctx.Err() != nil {
			return
		}
		if s.setIfUnchanged(mode, version) {
			s.metrics.SetModeAuto(mode == models.ModeAuto)
			s.recordOnLoop(models.KindInfo, models.ActorSystem, "Mode synchronized",
				fmt.Sprintf("Device reports %s mode", mode))
		}
	})
}
