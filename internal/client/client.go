// Package client talks to the battery/relay device backend over HTTP/JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"battery_dashboard/internal/models"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000/api"
	DefaultTimeout = 5 * time.Second

	maxBody = 1 << 20
)

// Client is a device REST client. It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	now  func() time.Time
}

// New creates a client for baseURL with a per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
}

// BaseURL returns the configured device endpoint.
func (c *Client) BaseURL() string { return c.base }

// GetBattery fetches and decodes the current battery snapshot.
func (c *Client) GetBattery(ctx context.Context) (models.BatteryTelemetry, error) {
	const op = "GET /battery"
	var raw any
	if _, err := c.do(ctx, op, http.MethodGet, "/battery", nil, &raw); err != nil {
		return models.BatteryTelemetry{}, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return models.BatteryTelemetry{}, protocolErr(op, http.StatusOK, "malformed battery payload", errNotObject)
	}
	return decodeBattery(m, c.now()), nil
}

// GetLogs fetches the device's activity log in the order the device sends it.
func (c *Client) GetLogs(ctx context.Context) ([]RemoteLog, error) {
	const op = "GET /logs"
	var raw any
	if _, err := c.do(ctx, op, http.MethodGet, "/logs", nil, &raw); err != nil {
		return nil, err
	}
	logs, err := decodeLogs(raw)
	if err != nil {
		return nil, protocolErr(op, http.StatusOK, "malformed logs payload", err)
	}
	return logs, nil
}

// SetRelay asks the device to switch the charger relay.
func (c *Client) SetRelay(ctx context.Context, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	return c.command(ctx, "POST /ssr", "/ssr", map[string]string{"state": state}, true)
}

// SetMode asks the device to switch its operating mode.
func (c *Client) SetMode(ctx context.Context, mode models.OperatingMode) error {
	return c.command(ctx, "POST /mode", "/mode", map[string]string{"mode": string(mode)}, true)
}

// SetAutoShutoff forwards the auto-shutoff configuration. Devices that
// answer 2xx without an envelope are treated as accepting it.
func (c *Client) SetAutoShutoff(ctx context.Context, enabled bool, threshold int) error {
	body := map[string]any{"enabled": enabled, "threshold": threshold}
	return c.command(ctx, "POST /relay/auto-shutoff", "/relay/auto-shutoff", body, false)
}

// GetMode reads the device's current operating mode.
func (c *Client) GetMode(ctx context.Context) (models.OperatingMode, error) {
	const op = "GET /mode"
	var resp struct {
		Mode string `json:"mode"`
	}
	if _, err := c.do(ctx, op, http.MethodGet, "/mode", nil, &resp); err != nil {
		return "", err
	}
	mode, ok := models.ParseMode(resp.Mode)
	if !ok {
		return "", protocolErr(op, http.StatusOK, fmt.Sprintf("unknown mode %q", resp.Mode), nil)
	}
	return mode, nil
}

// command posts body and interprets the success envelope. When strict is
// set a missing envelope is a protocol error.
func (c *Client) command(ctx context.Context, op, path string, body any, strict bool) error {
	var out outcome
	status, err := c.do(ctx, op, http.MethodPost, path, body, &out)
	if err != nil {
		return err
	}
	present, ok, reason := out.verdict()
	switch {
	case !present && strict:
		return protocolErr(op, status, "response carried no success flag", nil)
	case present && !ok:
		return applicationErr(op, status, reason)
	}
	return nil
}

// do performs one request and decodes a 2xx JSON body into out. Non-2xx
// responses become protocol errors, or application errors when the body
// explicitly reports success=false.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, protocolErr(op, 0, "encode request", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return 0, networkErr(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, networkErr(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, networkErr(op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env outcome
		if json.Unmarshal(data, &env) == nil {
			if present, ok, reason := env.verdict(); present && !ok {
				return resp.StatusCode, applicationErr(op, resp.StatusCode, reason)
			} else if reason != "" {
				return resp.StatusCode, protocolErr(op, resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, reason), nil)
			}
		}
		return resp.StatusCode, protocolErr(op, resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if _, isOutcome := out.(*outcome); isOutcome {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, protocolErr(op, resp.StatusCode, "empty response body", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return resp.StatusCode, protocolErr(op, resp.StatusCode, "malformed JSON", err)
	}
	return resp.StatusCode, nil
}
