// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "battery_dashboard"

// Metrics groups the dashboard collectors. All methods are no-ops on a
// nil receiver.
type Metrics struct {
	Polls           *prometheus.CounterVec
	PollLatency     *prometheus.HistogramVec
	Commands        *prometheus.CounterVec
	Entries         *prometheus.CounterVec
	BatteryPercent  prometheus.Gauge
	RelayConnected  prometheus.Gauge
	ModeAuto        prometheus.Gauge
	Viewers         prometheus.Gauge
	PendingCommands prometheus.Gauge
	Requests        *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Device polls by loop and result.",
		}, []string{"loop", "result"}),
		PollLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Device poll round-trip time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Device commands by command and result.",
		}, []string{"command", "result"}),
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_entries_total",
			Help:      "Activity entries recorded by kind.",
		}, []string{"kind"}),
		BatteryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_percent",
			Help:      "Last reported battery percentage.",
		}),
		RelayConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_connected",
			Help:      "1 when the dashboard shows the charger relay connected.",
		}),
		ModeAuto: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode_auto",
			Help:      "1 when the confirmed device mode is AUTO.",
		}),
		Viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_viewers",
			Help:      "Holders keeping the dashboard active.",
		}),
		PendingCommands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_pending_commands",
			Help:      "Relay commands awaiting device confirmation.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard API requests by route and status.",
		}, []string{"route", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard API latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Polls, m.PollLatency, m.Commands, m.Entries,
			m.BatteryPercent, m.RelayConnected, m.ModeAuto, m.Viewers, m.PendingCommands,
			m.Requests, m.RequestLatency,
		)
	}
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Metrics) ObservePoll(loop string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(loop, result(err)).Inc()
	m.PollLatency.WithLabelValues(loop).Observe(d.Seconds())
}

func (m *Metrics) ObserveCommand(command string, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, result(err)).Inc()
}

func (m *Metrics) ObserveEntry(kind string) {
	if m == nil {
		return
	}
	m.Entries.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetBattery(pct float64) {
	if m == nil {
		return
	}
	m.BatteryPercent.Set(pct)
}

func (m *Metrics) SetRelay(connected bool, pending int) {
	if m == nil {
		return
	}
	m.RelayConnected.Set(boolGauge(connected))
	m.PendingCommands.Set(float64(pending))
}

func (m *Metrics) SetModeAuto(auto bool) {
	if m == nil {
		return
	}
	m.ModeAuto.Set(boolGauge(auto))
}

func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.Viewers.Set(float64(n))
}

func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, statusClass(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(d.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
