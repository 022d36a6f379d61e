package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"battery_dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", time.Second)
}

func TestGetBattery_FlatPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/battery", r.URL.Path)
		_, _ = w.Write([]byte(`{"percentage": 85.5, "plugged": true, "seconds_left": 3600, "voltage": 12.6, "power": 45.2, "current": 3.5}`))
	})

	got, err := c.GetBattery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 85.5, got.Percentage)
	assert.Equal(t, models.StatusCharging, got.Status)
	assert.Equal(t, 60, got.TimeRemaining)
	require.NotNil(t, got.Voltage)
	assert.Equal(t, 12.6, *got.Voltage)
	assert.Equal(t, 45.2, got.PowerWatts())
	assert.Equal(t, 3.5, got.CurrentAmps())
	assert.Nil(t, got.TemperatureC)
	assert.False(t, got.ReceivedAt.IsZero())
}

func TestGetBattery_NestedAndStrings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"battery": {"percent": "101", "status": "FULL", "time_remaining": 12, "estimated_cycles": "341.6"}}`))
	})

	got, err := c.GetBattery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Percentage)
	assert.Equal(t, models.StatusFull, got.Status)
	assert.Equal(t, 12, got.TimeRemaining)
	require.NotNil(t, got.CycleCount)
	assert.Equal(t, 342, *got.CycleCount)
}

func TestGetBattery_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		kind Kind
	}{
		{"not json", `<html>`, 200, KindProtocol},
		{"array", `[1,2]`, 200, KindProtocol},
		{"server error", `oops`, 500, KindProtocol},
		{"empty", ``, 200, KindProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GetBattery(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestGetBattery_MissingFieldsDefault(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMin  int
		wantStat models.BatteryStatus
	}{
		{"empty object", `{}`, 0, models.StatusNotCharging},
		{"no percentage", `{"plugged": true, "power": 12}`, 0, models.StatusCharging},
		{"null percentage", `{"percentage": null, "seconds_left": 600}`, 10, models.StatusNotCharging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := c.GetBattery(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0.0, got.Percentage)
			assert.Equal(t, tt.wantMin, got.TimeRemaining)
			assert.Equal(t, tt.wantStat, got.Status)
		})
	}
}

func TestGetBattery_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).GetBattery(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestGetBattery_Cancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetBattery(ctx)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSetRelay(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantKind Kind
		cause    string
	}{
		{"nested success", 200, `{"result": {"success": true}}`, "", ""},
		{"flat success", 200, `{"success": true}`, "", ""},
		{"nested failure", 200, `{"result": {"success": false, "error": "relay busy"}}`, KindApplication, "relay busy"},
		{"flat failure no reason", 200, `{"success": false}`, KindApplication, "device rejected the request"},
		{"no envelope", 200, `{}`, KindProtocol, "response carried no success flag"},
		{"http 500", 500, ``, KindProtocol, "HTTP 500"},
		{"http 503 with refusal", 503, `{"success": false, "error": "serial port closed"}`, KindApplication, "serial port closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotState string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/ssr", r.URL.Path)
				var body map[string]string
				_ = json.NewDecoder(r.Body).Decode(&body)
				gotState = body["state"]
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.SetRelay(context.Background(), true)
			assert.Equal(t, "on", gotState)
			if tt.wantKind == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.cause, Cause(err))
		})
	}
}

func TestSetMode(t *testing.T) {
	var gotMode string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotMode = body["mode"]
		_, _ = w.Write([]byte(`{"success": false, "result": {"error": "controller offline"}}`))
	})

	err := c.SetMode(context.Background(), models.ModeAuto)
	assert.Equal(t, "AUTO", gotMode)
	require.Error(t, err)
	assert.Equal(t, KindApplication, KindOf(err))
	assert.Equal(t, "controller offline", Cause(err))
}

func TestGetMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mode": "auto"}`))
	})
	mode, err := c.GetMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ModeAuto, mode)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mode": "turbo"}`))
	})
	_, err = c.GetMode(context.Background())
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestSetAutoShutoff_AcceptsBareOK(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/relay/auto-shutoff", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SetAutoShutoff(context.Background(), true, 25))
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, 25.0, body["threshold"])
}

func TestGetLogs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"logs": [
			{"id": 7, "timestamp": "2024-03-01T10:00:00Z", "action": "Relay ON", "user": "Admin", "details": "manual", "type": "success"},
			{"time": 1709287200, "message": "Battery low", "level": "WARN"},
			"junk"
		]}`))
	})

	logs, err := c.GetLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "7", logs[0].ID)
	assert.Equal(t, "Relay ON", logs[0].Action)
	assert.Equal(t, "Admin", logs[0].Actor)
	assert.Equal(t, models.KindSuccess, logs[0].Kind)
	assert.True(t, logs[0].Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	assert.NotEmpty(t, logs[1].ID)
	assert.Equal(t, "Battery low", logs[1].Action)
	assert.Equal(t, "Battery low", logs[1].Details)
	assert.Equal(t, models.ActorDevice, logs[1].Actor)
	assert.Equal(t, models.KindWarning, logs[1].Kind)
	assert.Equal(t, int64(1709287200), logs[1].Timestamp.Unix())

	e := logs[0].Entry()
	assert.Equal(t, models.SourceDevice, e.Source)
}

func TestGetLogs_DerivedIDsAreStable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"timestamp": "2024-03-01 10:00:00", "action": "Boot"}]`))
	})

	a, err := c.GetLogs(context.Background())
	require.NoError(t, err)
	b, err := c.GetLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestGetLogs_NotAList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 3}`))
	})
	_, err := c.GetLogs(context.Background())
	assert.Equal(t, KindProtocol, KindOf(err))
}
