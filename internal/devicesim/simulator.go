// Package devicesim simulates the battery/relay device backend for
// development and tests.
package devicesim

import (
	"context"
	"math"
	"sync"
	"time"

	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/ring"
)

// ----------- Simulation constants -----------
const (
	ChargeRatePerSec    = 0.5  // % per second with the relay closed
	DischargeRatePerSec = 0.2  // % per second on battery
	ChargePowerW        = 45.0 // draw while charging
	LoadPowerW          = 15.0 // draw on battery
	NominalVoltage      = 11.1
	FullVoltageSwing    = 1.5 // V added between 0% and 100%
	logCapacity         = 100
)

// FaultError is an injected device refusal.
type FaultError struct {
	Op     string
	Reason string
}

func (e *FaultError) Error() string { return e.Op + ": " + e.Reason }

// Config seeds the simulated device.
type Config struct {
	InitialPercent float64
	Connected      bool
	Mode           models.OperatingMode
	AutoEnabled    bool
	LowThreshold   int
	FullThreshold  int
}

// Faults injects failures into the device API.
type Faults struct {
	BatteryDown     bool   `json:"battery_down"`      // GET /battery answers 503
	RelayHTTPStatus int    `json:"relay_http_status"` // POST /ssr answers this status with no body
	RelayError      string `json:"relay_error"`       // POST /ssr refuses with this reason
	ModeError       string `json:"mode_error"`        // POST /mode refuses with this reason
}

// LogRecord is one device-side activity record, shaped like the device's
// own log rows.
type LogRecord struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Details   string    `json:"details"`
	Type      string    `json:"type"`
}

// Reading is the battery payload served on GET /battery.
type Reading struct {
	Percentage      float64 `json:"percentage"`
	Plugged         bool    `json:"plugged"`
	SecondsLeft     int     `json:"seconds_left"`
	Voltage         float64 `json:"voltage"`
	Current         float64 `json:"current"`
	Power           float64 `json:"power"`
	TemperatureC    float64 `json:"temperature_celsius"`
	HealthPercent   float64 `json:"health_percent"`
	EstimatedCycles int     `json:"estimated_cycles"`
}

// Simulator is the in-memory device. It is safe for concurrent use.
type Simulator struct {
	mu        sync.Mutex
	cfg       Config
	pct       float64
	connected bool
	mode      models.OperatingMode
	autoOn    bool
	low       int
	cycles    float64
	updatedAt time.Time
	logs      *ring.Ring[LogRecord]
	nextID    int
	faults    Faults
	log       *logger.Logger
}

// New returns a simulator with defaults applied to zero config fields.
func New(cfg Config, log *logger.Logger) *Simulator {
	if cfg.Mode == "" {
		cfg.Mode = models.ModeManual
	}
	if cfg.LowThreshold <= 0 {
		cfg.LowThreshold = 20
	}
	if cfg.FullThreshold <= 0 {
		cfg.FullThreshold = 80
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Simulator{
		cfg:       cfg,
		pct:       math.Max(0, math.Min(100, cfg.InitialPercent)),
		connected: cfg.Connected,
		mode:      cfg.Mode,
		autoOn:    cfg.AutoEnabled,
		low:       cfg.LowThreshold,
		cycles:    120,
		updatedAt: time.Now(),
		logs:      ring.New[LogRecord](logCapacity),
		log:       log,
	}
	s.appendLocked(s.updatedAt, "Device started", models.ActorSystem, "Simulated charger controller online", models.KindInfo)
	return s
}

// Run advances the simulation at the given interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Step(now)
		}
	}
}

// Step advances the battery model to now.
func (s *Simulator) Step(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.updatedAt).Seconds()
	if elapsed <= 0 {
		return
	}
	s.updatedAt = now

	prev := s.pct
	if s.connected {
		s.pct = math.Min(100, s.pct+ChargeRatePerSec*elapsed)
	} else {
		s.pct = math.Max(0, s.pct-DischargeRatePerSec*elapsed)
	}
	s.cycles += math.Abs(s.pct-prev) / 200

	s.autoControlLocked(now)
}

// autoControlLocked mirrors the controller's AUTO behaviour: close the relay
// at or below the low threshold, open it at or above the full threshold.
func (s *Simulator) autoControlLocked(now time.Time) {
	if s.mode != models.ModeAuto || !s.autoOn {
		return
	}
	switch {
	case s.pct <= float64(s.low) && !s.connected:
		s.connected = true
		s.appendLocked(now, "Charge ON", models.ActorAuto, "Battery low, charging started", models.KindSuccess)
	case s.pct >= float64(s.cfg.FullThreshold) && s.connected:
		s.connected = false
		s.appendLocked(now, "Charge OFF", models.ActorAuto, "Battery high, charging stopped", models.KindWarning)
	}
}

func (s *Simulator) appendLocked(at time.Time, action, user, details string, kind models.LogKind) {
	s.nextID++
	s.logs.Push(LogRecord{
		ID:        s.nextID,
		Timestamp: at.UTC(),
		Action:    action,
		User:      user,
		Details:   details,
		Type:      string(kind),
	})
}

// Reading returns the current battery payload.
func (s *Simulator) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	voltage := NominalVoltage + FullVoltageSwing*s.pct/100
	power := LoadPowerW
	secondsLeft := -2 // unlimited while plugged
	if s.connected {
		power = ChargePowerW
	} else if DischargeRatePerSec > 0 {
		secondsLeft = int(s.pct / DischargeRatePerSec)
	}
	return Reading{
		Percentage:      math.Round(s.pct*10) / 10,
		Plugged:         s.connected,
		SecondsLeft:     secondsLeft,
		Voltage:         math.Round(voltage*100) / 100,
		Current:         math.Round(power/voltage*100) / 100,
		Power:           power,
		TemperatureC:    30 + 5*boolFloat(s.connected),
		HealthPercent:   math.Max(50, 100-s.cycles/20),
		EstimatedCycles: int(s.cycles),
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SetRelay switches the relay as requested by actor.
func (s *Simulator) SetRelay(on bool, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults.RelayError != "" {
		return &FaultError{Op: "relay", Reason: s.faults.RelayError}
	}
	s.connected = on
	if on {
		s.appendLocked(time.Now(), "Relay ON", actor, "Charger connected", models.KindSuccess)
	} else {
		s.appendLocked(time.Now(), "Relay OFF", actor, "Charger disconnected", models.KindWarning)
	}
	s.log.Infow("sim_relay_set", "on", on, "actor", actor)
	return nil
}

// Connected reports the relay state.
func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetMode changes the controller mode.
func (s *Simulator) SetMode(mode models.OperatingMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults.ModeError != "" {
		return &FaultError{Op: "mode", Reason: s.faults.ModeError}
	}
	if s.mode != mode {
		s.mode = mode
		s.appendLocked(time.Now(), "Mode changed", models.ActorAdmin, "Controller switched to "+string(mode), models.KindInfo)
		s.autoControlLocked(time.Now())
	}
	return nil
}

// Mode returns the controller mode.
func (s *Simulator) Mode() models.OperatingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetAutoShutoff updates the low threshold used in AUTO mode.
func (s *Simulator) SetAutoShutoff(enabled bool, threshold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoOn = enabled
	if threshold >= 0 && threshold <= 100 {
		s.low = threshold
	}
}

// LowThreshold returns the AUTO-mode charge-on threshold.
func (s *Simulator) LowThreshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.low
}

// Logs returns the device log, oldest first.
func (s *Simulator) Logs() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.Oldest()
}

// Faults returns the active fault injection.
func (s *Simulator) Faults() Faults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// SetFaults replaces the fault injection settings.
func (s *Simulator) SetFaults(f Faults) {
	s.mu.Lock()
	s.faults = f
	s.mu.Unlock()
	s.log.Infow("sim_faults_set", "faults", f)
}
