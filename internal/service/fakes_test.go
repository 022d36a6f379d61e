package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/repository"

	"github.com/stretchr/testify/require"
)

type shutoffCall struct {
	enabled   bool
	threshold int
}

// fakeDevice is a scripted Device. Nil funcs succeed with zero values.
type fakeDevice struct {
	battery func(ctx context.Context) (models.BatteryTelemetry, error)
	logs    func(ctx context.Context) ([]client.RemoteLog, error)
	relay   func(ctx context.Context, on bool) error
	mode    func(ctx context.Context, m models.OperatingMode) error
	getMode func(ctx context.Context) (models.OperatingMode, error)
	shutoff func(ctx context.Context, enabled bool, threshold int) error

	mu         sync.Mutex
	relayCalls []bool
	modeCalls  []models.OperatingMode
	shutoffs   chan shutoffCall
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{shutoffs: make(chan shutoffCall, 8)}
}

func (f *fakeDevice) GetBattery(ctx context.Context) (models.BatteryTelemetry, error) {
	if f.battery == nil {
		return models.BatteryTelemetry{Percentage: 50, Status: models.StatusCharging, ReceivedAt: time.Now()}, nil
	}
	return f.battery(ctx)
}

func (f *fakeDevice) GetLogs(ctx context.Context) ([]client.RemoteLog, error) {
	if f.logs == nil {
		return nil, nil
	}
	return f.logs(ctx)
}

func (f *fakeDevice) SetRelay(ctx context.Context, on bool) error {
	f.mu.Lock()
	f.relayCalls = append(f.relayCalls, on)
	f.mu.Unlock()
	if f.relay == nil {
		return nil
	}
	return f.relay(ctx, on)
}

func (f *fakeDevice) SetMode(ctx context.Context, m models.OperatingMode) error {
	f.mu.Lock()
	f.modeCalls = append(f.modeCalls, m)
	f.mu.Unlock()
	if f.mode == nil {
		return nil
	}
	return f.mode(ctx, m)
}

func (f *fakeDevice) GetMode(ctx context.Context) (models.OperatingMode, error) {
	if f.getMode == nil {
		return models.ModeManual, nil
	}
	return f.getMode(ctx)
}

func (f *fakeDevice) SetAutoShutoff(ctx context.Context, enabled bool, threshold int) error {
	f.shutoffs <- shutoffCall{enabled: enabled, threshold: threshold}
	if f.shutoff == nil {
		return nil
	}
	return f.shutoff(ctx, enabled, threshold)
}

func (f *fakeDevice) relayCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.relayCalls)
}

func (f *fakeDevice) modeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modeCalls)
}

// gatedRelay makes each SetRelay call wait for the next scripted outcome.
func gatedRelay(outcomes <-chan error) func(context.Context, bool) error {
	return func(ctx context.Context, _ bool) error {
		select {
		case err := <-outcomes:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var defaultRelay = models.RelayStatus{AutoShutoffEnabled: true, AutoShutoffThreshold: 20}

type harness struct {
	svc    *Service
	repos  *repository.Repository
	dev    Device
	cancel context.CancelFunc
}

func newHarness(t *testing.T, dev Device, opts Options, initial models.RelayStatus) *harness {
	t.Helper()
	repos := repository.NewRepository(initial, repository.NewNotifier(64))
	svc, err := NewService(repos, dev, opts, Deps{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.Start(ctx)
	h := &harness{svc: svc, repos: repos, dev: dev, cancel: cancel}
	h.flush(t)
	return h
}

// flush waits until every task queued so far has run.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.core.loop.Do(context.Background(), func() {}))
}

func (h *harness) entries() []models.ActivityEntry {
	return h.repos.Activity.List()
}

func waitConfirmed(t *testing.T, r Receipt) error {
	t.Helper()
	select {
	case err := <-r.Confirmed:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("relay command %d was never confirmed", r.Seq)
		return nil
	}
}
