package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePoll("telemetry", 10*time.Millisecond, nil)
	m.ObservePoll("telemetry", 10*time.Millisecond, errors.New("down"))
	m.ObservePoll("logs", time.Millisecond, nil)
	m.ObserveCommand("relay", errors.New("refused"))
	m.ObserveEntry("error")
	m.ObserveRequest("/api/v1/relay/toggle", 409, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("telemetry", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("telemetry", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("relay", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Entries.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/relay/toggle", "4xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.PollLatency))
}

func TestMetrics_Gauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetBattery(77.5)
	m.SetRelay(true, 3)
	m.SetModeAuto(true)
	m.SetViewers(2)

	assert.Equal(t, 77.5, testutil.ToFloat64(m.BatteryPercent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayConnected))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingCommands))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeAuto))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Viewers))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObservePoll("telemetry", 0, nil)
	m.ObserveCommand("mode", nil)
	m.ObserveEntry("info")
	m.SetBattery(1)
	m.SetRelay(false, 0)
	m.SetModeAuto(false)
	m.SetViewers(0)
	m.ObserveRequest("/", 200, 0)
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(202))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(502))
}
