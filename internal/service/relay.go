package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/scheduler"
)

// Receipt is returned by ToggleRelay once the optimistic state is visible.
type Receipt struct {
	Seq    uint64
	Status models.RelayStatus
	// Confirmed delivers nil when the device accepted the command, or the
	// failure after the rollback has been applied. It is closed afterwards.
	Confirmed <-chan error
}

// relayCommand is one unresolved relay toggle.
type relayCommand struct {
	seq       uint64
	previous  bool // value to restore if this command fails
	attempted bool
	issuedAt  time.Time
	done      chan error
	once      sync.Once
}

func (c *relayCommand) finish(err error) {
	c.once.Do(func() {
		c.done <- err
		close(c.done)
	})
}

// RelayService is the CommandDispatcher for relay and auto-shutoff commands.
type RelayService struct {
	*core
	device  Device
	mode    *ModeController
	opts    Options
	queue   chan *relayCommand
	rootMu  sync.RWMutex
	rootCtx context.Context

	// loop-owned
	seq     uint64
	pending []*relayCommand
}

func NewRelayService(c *core, device Device, mode *ModeController, opts Options) *RelayService {
	return &RelayService{
		core:    c,
		device:  device,
		mode:    mode,
		opts:    opts,
		queue:   make(chan *relayCommand, opts.MaxPending),
		rootCtx: context.Background(),
	}
}

// RelayStatus returns the current relay view.
func (s *RelayService) RelayStatus() models.RelayStatus {
	return s.repos.Relay.Load()
}

// ToggleRelay applies the requested state optimistically, records one
// entry and queues the device command. The device is contacted in issue
// order by a single sender.
func (s *RelayService) ToggleRelay(ctx context.Context, on bool) (Receipt, error) {
	type result struct {
		r   Receipt
		err error
	}
	res, err := scheduler.Call(ctx, s.loop, func() result {
		if err := ctx.Err(); err != nil {
			return result{err: err}
		}
		if len(s.pending) >= s.opts.MaxPending {
			return result{err: ErrTooManyPending}
		}
		st := s.repos.Relay.Load()
		s.seq++
		cmd := &relayCommand{
			seq:       s.seq,
			previous:  st.IsConnected,
			attempted: on,
			issuedAt:  s.now(),
			done:      make(chan error, 1),
		}
		s.pending = append(s.pending, cmd)

		st.IsConnected = on
		st.LastToggle = cmd.issuedAt
		st.Pending = true
		s.repos.Relay.Save(st)
		s.metrics.SetRelay(on, len(s.pending))

		if on {
			s.recordOnLoop(models.KindSuccess, models.ActorAdmin, "Relay activated", "Charger connected")
		} else {
			s.recordOnLoop(models.KindWarning, models.ActorAdmin, "Relay deactivated", "Charger disconnected")
		}

		// cannot block: queue capacity equals the pending limit
		s.queue <- cmd
		return result{r: Receipt{Seq: cmd.seq, Status: st, Confirmed: cmd.done}}
	})
	if err != nil {
		return Receipt{}, err
	}
	return res.r, res.err
}

// runSender delivers queued commands one at a time until ctx is done.
func (s *RelayService) runSender(ctx context.Context) {
	s.rootMu.Lock()
	s.rootCtx = ctx
	s.rootMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			s.abandon()
			return
		case cmd := <-s.queue:
			s.send(ctx, cmd)
		}
	}
}

func (s *RelayService) send(ctx context.Context, cmd *relayCommand) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	err := s.device.SetRelay(callCtx, cmd.attempted)
	cancel()
	s.metrics.ObserveCommand("relay", err)

	if !s.loop.Post(func() { s.resolveOnLoop(cmd, err) }) {
		cmd.finish(ErrLoopStopped)
	}
}

// drain fails every command that never reached the device.
func (s *RelayService) drain() {
	for {
		select {
		case cmd := <-s.queue:
			cmd.finish(ErrLoopStopped)
		default:
			return
		}
	}
}

// abandon fails every command still unresolved once the loop has exited,
// including those whose outcome was queued on the loop but dropped.
func (s *RelayService) abandon() {
	<-s.loop.Done()
	for _, cmd := range s.pending {
		cmd.finish(ErrLoopStopped)
	}
	s.pending = nil
}

// resolveOnLoop applies a device outcome. A failed command restores its
// stored previous value when it is the newest unresolved one; otherwise the
// previous value is handed to its successor so the chain still unwinds to
// the last confirmed state.
func (s *RelayService) resolveOnLoop(cmd *relayCommand, err error) {
	idx := -1
	for i, c := range s.pending {
		if c == cmd {
			idx = i
			break
		}
	}
	if idx < 0 {
		cmd.finish(err)
		return
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)

	st := s.repos.Relay.Load()
	if err != nil {
		if idx < len(s.pending) {
			s.pending[idx].previous = cmd.previous
		} else {
			st.IsConnected = cmd.previous
		}
		action := "on"
		if !cmd.attempted {
			action = "off"
		}
		s.recordOnLoop(models.KindError, models.ActorSystem, "Relay command failed",
			fmt.Sprintf("Failed to turn charger %s: %s", action, client.Cause(err)))
		s.log.Warnw("relay_command_failed", "seq", cmd.seq, "attempted", cmd.attempted,
			"kind", client.KindOf(err), "err", err)
	}
	st.Pending = len(s.pending) > 0
	s.repos.Relay.Save(st)
	s.metrics.SetRelay(st.IsConnected, len(s.pending))

	if err != nil {
		cmd.finish(fmt.Errorf("relay command %d: %w", cmd.seq, err))
		return
	}
	cmd.finish(nil)
}

// PendingCommands returns the number of unresolved relay commands.
func (s *RelayService) PendingCommands(ctx context.Context) (int, error) {
	return scheduler.Call(ctx, s.loop, func() int { return len(s.pending) })
}

// UpdateAutoShutoff changes the local auto-shutoff settings and forwards
// them to the device in the background. A nil threshold keeps the current
// one. Remote failures are logged only.
func (s *RelayService) UpdateAutoShutoff(ctx context.Context, enabled bool, threshold *int) (models.RelayStatus, error) {
	if threshold != nil && (*threshold < 0 || *threshold > 100) {
		return models.RelayStatus{}, ErrInvalidThreshold
	}
	st, err := scheduler.Call(ctx, s.loop, func() models.RelayStatus {
		st := s.repos.Relay.Load()
		st.AutoShutoffEnabled = enabled
		if threshold != nil {
			st.AutoShutoffThreshold = *threshold
		}
		s.repos.Relay.Save(st)

		details := "Auto-shutoff disabled"
		if enabled {
			details = fmt.Sprintf("Auto-shutoff enabled at %d%%", st.AutoShutoffThreshold)
		}
		s.recordOnLoop(models.KindInfo, models.ActorAdmin, "Auto-shutoff settings changed", details)
		return st
	})
	if err != nil {
		return models.RelayStatus{}, err
	}

	s.rootMu.RLock()
	root := s.rootCtx
	s.rootMu.RUnlock()
	go s.notifyAutoShutoff(root, st.AutoShutoffEnabled, st.AutoShutoffThreshold)
	return st, nil
}

func (s *RelayService) notifyAutoShutoff(ctx context.Context, enabled bool, threshold int) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()
	err := s.device.SetAutoShutoff(ctx, enabled, threshold)
	s.metrics.ObserveCommand("auto_shutoff", err)
	if err != nil {
		s.log.Warnw("auto_shutoff_notify_failed", "enabled", enabled, "threshold", threshold,
			"kind", client.KindOf(err), "err", err)
	}
}

// mirrorAutoOnLoop reflects the device's own AUTO-mode relay control in the
// local view after each telemetry snapshot.
func (s *RelayService) mirrorAutoOnLoop(t models.BatteryTelemetry) {
	if s.mode.Current() != models.ModeAuto || len(s.pending) > 0 {
		return
	}
	st := s.repos.Relay.Load()
	if !st.AutoShutoffEnabled {
		return
	}
	want := st.IsConnected
	switch {
	case t.Percentage <= float64(st.AutoShutoffThreshold):
		want = true
	case t.Percentage >= float64(s.opts.FullThreshold):
		want = false
	}
	if want == st.IsConnected {
		return
	}
	st.IsConnected = want
	st.LastToggle = s.now()
	s.repos.Relay.Save(st)
	s.metrics.SetRelay(want, 0)

	details := fmt.Sprintf("Battery at %.0f%%: charger disconnected", t.Percentage)
	if want {
		details = fmt.Sprintf("Battery at %.0f%%: charger connected", t.Percentage)
	}
	s.recordOnLoop(models.KindInfo, models.ActorAuto, "Automatic relay control", details)
}
