package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
device:
  base_url: "http://10.0.0.5:5000/api"
  timeout: 3s
poll:
  telemetry_interval: 1s
  always: true
relay:
  auto_shutoff_threshold: 30
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "http://10.0.0.5:5000/api", cfg.Device.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Device.Timeout)
	assert.Equal(t, time.Second, cfg.Poll.TelemetryInterval)
	assert.Equal(t, 5*time.Second, cfg.Poll.LogsInterval, "default kept")
	assert.True(t, cfg.Poll.Always)
	assert.Equal(t, 30, cfg.Relay.AutoShutoffThreshold)
	assert.True(t, cfg.Relay.AutoShutoffEnabled)
	assert.Equal(t, 80, cfg.Relay.FullThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("DASHBOARD_DEVICE_BASE_URL", "http://envhost:5000/api")
	t.Setenv("DASHBOARD_POLL_LOGS_INTERVAL", "7s")
	t.Setenv("DASHBOARD_MQTT_ENABLED", "true")

	cfg, err := Load(writeConfig(t, "device:\n  base_url: http://filehost/api\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://envhost:5000/api", cfg.Device.BaseURL)
	assert.Equal(t, 7*time.Second, cfg.Poll.LogsInterval)
	assert.True(t, cfg.MQTT.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"relative url", "device:\n  base_url: /api\n", "device.base_url"},
		{"threshold", "relay:\n  auto_shutoff_threshold: 120\n", "auto_shutoff_threshold"},
		{"interval", "poll:\n  telemetry_interval: 0s\n", "poll.telemetry_interval"},
		{"format", "logging:\n  format: xml\n", "logging.format"},
		{"qos", "mqtt:\n  qos: 3\n", "mqtt.qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestYAML_MasksPassword(t *testing.T) {
	cfg, err := Load(writeConfig(t, "mqtt:\n  password: hunter2\n"))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	s := string(out)
	assert.False(t, strings.Contains(s, "hunter2"))
	assert.Contains(t, s, "http://127.0.0.1:5000/api")
	assert.Equal(t, "hunter2", cfg.MQTT.Password, "original config untouched")
}
