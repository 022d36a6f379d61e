package client

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"battery_dashboard/internal/models"

	"github.com/google/uuid"
)

var (
	errNotObject = errors.New("expected a JSON object")
	errNotList   = errors.New("expected a JSON array of log entries")
)

// number reads a numeric value that may arrive as a JSON number or a
// numeric string.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func boolean(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return p, err == nil
	case json.Number, float64:
		f, ok := number(b)
		return f != 0, ok
	}
	return false, false
}

func text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

// first returns the first alias key present in m.
func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := number(m[k]); ok {
			return f, true
		}
	}
	return 0, false
}

func firstText(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := text(m[k]); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func optFloat(m map[string]any, keys ...string) *float64 {
	if f, ok := firstNumber(m, keys...); ok {
		return &f
	}
	return nil
}

// unwrapBattery returns the object holding the battery fields, which the
// device may nest under "battery" or "status".
func unwrapBattery(raw map[string]any) map[string]any {
	for _, k := range []string{"battery", "status"} {
		if inner, ok := raw[k].(map[string]any); ok {
			return inner
		}
	}
	return raw
}

// decodeBattery maps a device battery payload onto BatteryTelemetry.
// A missing or unusable percentage reads as 0, never the previous value,
// since snapshots replace each other wholesale. Absent optional fields stay nil.
func decodeBattery(raw map[string]any, now time.Time) models.BatteryTelemetry {
	m := unwrapBattery(raw)

	pct, _ := firstNumber(m, "percentage", "percent", "level")
	pct = math.Max(0, math.Min(100, pct))

	t := models.BatteryTelemetry{
		Percentage:    pct,
		Status:        decodeStatus(m, pct),
		TimeRemaining: decodeMinutes(m),
		Voltage:       optFloat(m, "voltage"),
		Current:       optFloat(m, "current"),
		Power:         optFloat(m, "power"),
		TemperatureC:  optFloat(m, "temperature_celsius", "temperature"),
		HealthPercent: optFloat(m, "health_percent", "health"),
		ReceivedAt:    now,
	}
	if c, ok := firstNumber(m, "estimated_cycles", "cycle_count"); ok {
		n := int(math.Round(c))
		t.CycleCount = &n
	}
	return t
}

func decodeStatus(m map[string]any, pct float64) models.BatteryStatus {
	if s, ok := m["status"].(string); ok {
		if st, ok := models.ParseBatteryStatus(s); ok {
			return st
		}
	}
	if v, ok := first(m, "plugged", "isCharging", "charging"); ok {
		if plugged, ok := boolean(v); ok {
			switch {
			case plugged && pct >= 100:
				return models.StatusFull
			case plugged:
				return models.StatusCharging
			default:
				return models.StatusDischarging
			}
		}
	}
	return models.StatusNotCharging
}

// decodeMinutes prefers a seconds field and converts it; negative values
// mean unknown and become 0.
func decodeMinutes(m map[string]any) int {
	if s, ok := firstNumber(m, "seconds_left", "time_left", "secsleft"); ok {
		if s < 0 {
			return 0
		}
		return int(s / 60)
	}
	if mins, ok := firstNumber(m, "time_remaining", "timeRemaining"); ok && mins > 0 {
		return int(mins)
	}
	return 0
}

// RemoteLog is one device-side activity record.
type RemoteLog struct {
	ID        string
	Timestamp time.Time // zero when the device did not send one
	Action    string
	Actor     string
	Details   string
	Kind      models.LogKind
}

// Entry converts the record into an activity entry sourced from the device.
func (r RemoteLog) Entry() models.ActivityEntry {
	return models.ActivityEntry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Action:    r.Action,
		Actor:     r.Actor,
		Details:   r.Details,
		Kind:      r.Kind,
		Source:    models.SourceDevice,
	}
}

// remoteLogNS scopes derived IDs for device entries that carry none.
var remoteLogNS = uuid.MustParse("6f1c5a9e-3d2b-4c8a-9b7e-2a4d6c8e0f13")

func decodeLogs(v any) ([]RemoteLog, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		inner, ok := first(t, "logs", "events")
		if !ok {
			return nil, errNotList
		}
		if items, ok = inner.([]any); !ok {
			return nil, errNotList
		}
	default:
		return nil, errNotList
	}

	out := make([]RemoteLog, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, decodeLog(m))
	}
	return out, nil
}

func decodeLog(m map[string]any) RemoteLog {
	r := RemoteLog{
		Action:  firstText(m, "action", "type_name", "message"),
		Actor:   firstText(m, "user", "actor"),
		Details: firstText(m, "details", "description", "message"),
		Kind:    models.ParseLogKind(strings.ToLower(firstText(m, "type", "kind", "level"))),
	}
	if ts, ok := first(m, "timestamp", "time", "occurred_at"); ok {
		r.Timestamp = parseTime(ts)
	}
	if r.Actor == "" {
		r.Actor = models.ActorDevice
	}
	if r.Action == "" {
		r.Action = "Device event"
	}
	r.ID = firstText(m, "id")
	if r.ID == "" {
		key := r.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + r.Action + "|" + r.Details
		r.ID = uuid.NewSHA1(remoteLogNS, []byte(key)).String()
	}
	return r
}

// parseTime accepts RFC3339, "YYYY-MM-DD HH:MM:SS" and unix seconds or
// milliseconds. Unparseable values yield the zero time.
func parseTime(v any) time.Time {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts
			}
		}
	}
	f, ok := number(v)
	if !ok || f <= 0 {
		return time.Time{}
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f))
	}
	return time.Unix(int64(f), 0)
}

// outcome is the device's confirmation envelope, either flat or nested
// under "result".
type outcome struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Result  *struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	} `json:"result"`
}

// verdict reports whether the envelope was present and whether it said success.
func (o outcome) verdict() (present, ok bool, reason string) {
	reason = o.Error
	if o.Result != nil && o.Result.Error != "" {
		reason = o.Result.Error
	}
	if reason == "" {
		reason = o.Message
	}
	switch {
	case o.Result != nil && o.Result.Success != nil:
		return true, *o.Result.Success, reason
	case o.Success != nil:
		return true, *o.Success, reason
	}
	return false, false, reason
}
