package service

import "time"

// LogFilter narrows an activity log listing. Zero values mean no filter.
type LogFilter struct {
	Kind   string    // "", "info", "warning", "error", "success"
	Source string    // "", "local", "device"
	Since  time.Time // inclusive lower bound on Timestamp
	Limit  int       // 0 means everything retained
}

// Options tunes the synchronization core.
type Options struct {
	TelemetryInterval time.Duration
	LogsInterval      time.Duration
	MaxBackoff        time.Duration
	// CommandTimeout bounds each relay/mode/auto-shutoff device call.
	CommandTimeout time.Duration
	// FullThreshold is the percentage at which AUTO mode disconnects the charger.
	FullThreshold int
	MaxPending    int
	SeenLogs      int
	// AlwaysPoll keeps the pollers running with no viewer attached.
	AlwaysPoll bool
}

const (
	defaultTelemetryInterval = 2 * time.Second
	defaultLogsInterval      = 5 * time.Second
	defaultMaxBackoff        = 30 * time.Second
	defaultCommandTimeout    = 10 * time.Second
	defaultFullThreshold     = 80
	defaultMaxPending        = 16
	defaultSeenLogs          = 1024
)

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.TelemetryInterval <= 0 {
		o.TelemetryInterval = defaultTelemetryInterval
	}
	if o.LogsInterval <= 0 {
		o.LogsInterval = defaultLogsInterval
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.FullThreshold <= 0 || o.FullThreshold > 100 {
		o.FullThreshold = defaultFullThreshold
	}
	if o.MaxPending <= 0 {
		o.MaxPending = defaultMaxPending
	}
	if o.SeenLogs <= 0 {
		o.SeenLogs = defaultSeenLogs
	}
	return o
}
