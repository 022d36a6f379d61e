package handlers

import (
	"context"
	"sync"

	"battery_dashboard/internal/models"
	"battery_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMonitoring struct {
	telemetry models.BatteryTelemetry
	available bool
	history   []models.PowerSample
	dashboard models.Dashboard
}

func (m *mockMonitoring) Telemetry() (models.BatteryTelemetry, bool) { return m.telemetry, m.available }
func (m *mockMonitoring) History() []models.PowerSample              { return m.history }
func (m *mockMonitoring) Dashboard() models.Dashboard                { return m.dashboard }

type mockEventLog struct {
	entries    []models.ActivityEntry
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.ActivityEntry, error) {
	m.lastFilter = f
	return m.entries, m.err
}

type mockRelay struct {
	status    models.RelayStatus
	toggleErr error
	updateErr error

	toggles       []bool
	lastEnabled   bool
	lastThreshold *int
}

func (m *mockRelay) RelayStatus() models.RelayStatus { return m.status }

func (m *mockRelay) ToggleRelay(_ context.Context, on bool) (service.Receipt, error) {
	if m.toggleErr != nil {
		return service.Receipt{}, m.toggleErr
	}
	m.toggles = append(m.toggles, on)
	m.status.IsConnected = on
	m.status.Pending = true
	return service.Receipt{Seq: uint64(len(m.toggles)), Status: m.status}, nil
}

func (m *mockRelay) UpdateAutoShutoff(_ context.Context, enabled bool, threshold *int) (models.RelayStatus, error) {
	if m.updateErr != nil {
		return models.RelayStatus{}, m.updateErr
	}
	m.lastEnabled = enabled
	m.lastThreshold = threshold
	m.status.AutoShutoffEnabled = enabled
	if threshold != nil {
		m.status.AutoShutoffThreshold = *threshold
	}
	return m.status, nil
}

type mockMode struct {
	mode      models.OperatingMode
	switchErr error
	switched  []models.OperatingMode
}

func (m *mockMode) Current() models.OperatingMode { return m.mode }
func (m *mockMode) AllowsManualToggle() bool      { return m.mode == models.ModeManual }
func (m *mockMode) SwitchMode(_ context.Context, mode models.OperatingMode) error {
	m.switched = append(m.switched, mode)
	if m.switchErr != nil {
		return m.switchErr
	}
	m.mode = mode
	return nil
}

type mockLifecycle struct {
	mu       sync.Mutex
	holders  int
	acquired int
}

func (m *mockLifecycle) Acquire() func() {
	m.mu.Lock()
	m.holders++
	m.acquired++
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.holders--
			m.mu.Unlock()
		})
	}
}

func (m *mockLifecycle) Polling() bool { return m.Viewers() > 0 }

func (m *mockLifecycle) Viewers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holders
}

type mocks struct {
	mon   *mockMonitoring
	logs  *mockEventLog
	relay *mockRelay
	mode  *mockMode
	life  *mockLifecycle
}

func newMocks() *mocks {
	return &mocks{
		mon:   &mockMonitoring{},
		logs:  &mockEventLog{},
		relay: &mockRelay{status: models.RelayStatus{AutoShutoffEnabled: true, AutoShutoffThreshold: 20}},
		mode:  &mockMode{mode: models.ModeManual},
		life:  &mockLifecycle{},
	}
}

func (m *mocks) service() *service.Service {
	return &service.Service{
		Monitoring: m.mon,
		EventLog:   m.logs,
		Relay:      m.relay,
		Mode:       m.mode,
		Lifecycle:  m.life,
	}
}

func newTestRouter(s *service.Service, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, nil, opts).InitRoutes()
}
