package devicesim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimServer(t *testing.T, cfg Config) (*Simulator, *client.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sim := New(cfg, nil)
	srv := httptest.NewServer(NewHandler(sim, nil).InitRoutes())
	t.Cleanup(srv.Close)
	return sim, client.New(srv.URL+"/api", time.Second)
}

func TestClientAgainstSimulator_Battery(t *testing.T) {
	_, c := newSimServer(t, Config{InitialPercent: 64.2})

	got, err := c.GetBattery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64.2, got.Percentage)
	assert.Equal(t, models.StatusDischarging, got.Status)
	assert.Equal(t, int(64.2/DischargeRatePerSec)/60, got.TimeRemaining)
	require.NotNil(t, got.Power)
	assert.Equal(t, LoadPowerW, *got.Power)
	require.NotNil(t, got.CycleCount)
}

func TestClientAgainstSimulator_RelayAndLogs(t *testing.T) {
	sim, c := newSimServer(t, Config{InitialPercent: 50})

	require.NoError(t, c.SetRelay(context.Background(), true))
	assert.True(t, sim.Connected())

	logs, err := c.GetLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Relay ON", logs[1].Action)
	assert.Equal(t, models.KindSuccess, logs[1].Kind)
	assert.Equal(t, "2", logs[1].ID)
}

func TestClientAgainstSimulator_Faults(t *testing.T) {
	sim, c := newSimServer(t, Config{})

	sim.SetFaults(Faults{RelayError: "interlock open"})
	err := c.SetRelay(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, client.KindApplication, client.KindOf(err))
	assert.Equal(t, "interlock open", client.Cause(err))

	sim.SetFaults(Faults{RelayHTTPStatus: http.StatusInternalServerError})
	err = c.SetRelay(context.Background(), true)
	assert.Equal(t, client.KindProtocol, client.KindOf(err))

	sim.SetFaults(Faults{BatteryDown: true})
	_, err = c.GetBattery(context.Background())
	assert.Equal(t, client.KindProtocol, client.KindOf(err))

	sim.SetFaults(Faults{ModeError: "controller busy"})
	err = c.SetMode(context.Background(), models.ModeAuto)
	assert.Equal(t, client.KindApplication, client.KindOf(err))
	assert.Equal(t, models.ModeManual, sim.Mode())
}

func TestClientAgainstSimulator_Mode(t *testing.T) {
	sim, c := newSimServer(t, Config{})

	require.NoError(t, c.SetMode(context.Background(), models.ModeAuto))
	assert.Equal(t, models.ModeAuto, sim.Mode())

	mode, err := c.GetMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ModeAuto, mode)

	require.NoError(t, c.SetAutoShutoff(context.Background(), true, 35))
	assert.Equal(t, 35, sim.LowThreshold())
}

func TestHandler_SSRValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(New(Config{}, nil), nil)
	r := h.InitRoutes()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ssr", strings.NewReader(`{"state":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestHandler_FaultsRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sim := New(Config{}, nil)
	r := NewHandler(sim, nil).InitRoutes()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/sim/faults", strings.NewReader(`{"battery_down":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sim.Faults().BatteryDown)
}
