package handlers

import (
	"errors"
	"net/http"
	"strings"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusAccepted = "accepted"
	statusModeSet  = "mode_set"
	statusUpdated  = "updated"

	errInvalidBodyPref = "invalid body: "
	errInvalidState    = "state must be on or off"
	errAutoMode        = "relay is under automatic control; switch to MANUAL first"
	errTooManyPending  = "too many relay commands awaiting confirmation"
	errRateLimited     = "too many requests"
	errShuttingDown    = "service is shutting down"
	errToggleRelay     = "failed to toggle relay"
	errAutoShutoff     = "failed to update auto-shutoff"
	errSwitchMode      = "device rejected the mode change"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		if httpCode >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Warnw(logKey, fields...)
		}
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandError maps dispatcher failures that happen before any device call.
func (h *Handler) commandError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrTooManyPending):
		h.logAndJSONError(c, http.StatusTooManyRequests, errTooManyPending, logKey, err, kv...)
	case errors.Is(err, service.ErrInvalidThreshold), errors.Is(err, service.ErrInvalidMode):
		h.logAndJSONError(c, http.StatusBadRequest, err.Error(), logKey, err, kv...)
	case errors.Is(err, service.ErrLoopStopped):
		h.logAndJSONError(c, http.StatusServiceUnavailable, errShuttingDown, logKey, err, kv...)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, kv...)
	}
}

// ToggleRelayRequest is the payload of POST /api/v1/relay/toggle.
type ToggleRelayRequest struct {
	// Desired relay state. Allowed: on, off
	State string `json:"state" binding:"required" example:"on"`
}

// AutoShutoffRequest is the payload of POST /api/v1/relay/auto-shutoff.
type AutoShutoffRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
	// Percentage at or below which the device reconnects the charger. Omit to keep the current one.
	Threshold *int `json:"threshold,omitempty" example:"20"`
}

// SetModeRequest is the payload of POST /api/v1/mode.
type SetModeRequest struct {
	// Mode to set. Allowed: MANUAL, AUTO
	Mode string `json:"mode" binding:"required" example:"AUTO"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  statusOK,
		"polling": h.services.Lifecycle.Polling(),
	})
}

// @Summary      Dashboard snapshot
// @Description  Telemetry, relay, mode, power history and activity log in one read
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  models.Dashboard
// @Router       /api/v1/dashboard [get]
func (h *Handler) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Dashboard())
}

// @Summary      Latest telemetry
// @Description  available is false until the first successful poll
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "available, telemetry"
// @Router       /api/v1/telemetry [get]
func (h *Handler) getTelemetry(c *gin.Context) {
	t, ok := h.services.Monitoring.Telemetry()
	c.JSON(http.StatusOK, gin.H{"available": ok, "telemetry": t})
}

// @Summary      Power history
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, samples"
// @Router       /api/v1/history [get]
func (h *Handler) getHistory(c *gin.Context) {
	samples := h.services.Monitoring.History()
	c.JSON(http.StatusOK, gin.H{"count": len(samples), "samples": samples})
}

// @Summary      Polling state
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "polling, viewers"
// @Router       /api/v1/polling [get]
func (h *Handler) getPolling(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"polling": h.services.Lifecycle.Polling(),
		"viewers": h.services.Lifecycle.Viewers(),
	})
}

// @Summary      Relay status
// @Tags         relay
// @Produce      json
// @Success      200  {object}  models.RelayStatus
// @Router       /api/v1/relay [get]
func (h *Handler) getRelay(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Relay.RelayStatus())
}

// @Summary      Toggle relay
// @Description  Applies the state optimistically and returns before the device confirms. A failed command is rolled back and logged.
// @Tags         relay
// @Accept       json
// @Produce      json
// @Param        body  body   ToggleRelayRequest  true  "Relay payload"
// @Success      202   {object}  map[string]interface{}  "status, seq, relay"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/relay/toggle [post]
func (h *Handler) toggleRelay(c *gin.Context) {
	var req ToggleRelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	var on bool
	switch strings.ToLower(strings.TrimSpace(req.State)) {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidState})
		return
	}
	if !h.services.Mode.AllowsManualToggle() {
		c.JSON(http.StatusConflict, gin.H{"error": errAutoMode, "mode": h.services.Mode.Current()})
		return
	}

	receipt, err := h.services.Relay.ToggleRelay(c.Request.Context(), on)
	if err != nil {
		h.commandError(c, errToggleRelay, "relay_toggle_failed", err, "on", on)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status": statusAccepted,
		"seq":    receipt.Seq,
		"relay":  receipt.Status,
	})
}

// @Summary      Update auto-shutoff
// @Description  Updates the local settings immediately and forwards them to the device in the background
// @Tags         relay
// @Accept       json
// @Produce      json
// @Param        body  body   AutoShutoffRequest  true  "Auto-shutoff payload"
// @Success      200   {object}  map[string]interface{}  "status, relay"
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/v1/relay/auto-shutoff [post]
func (h *Handler) setAutoShutoff(c *gin.Context) {
	var req AutoShutoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := h.services.Relay.UpdateAutoShutoff(c.Request.Context(), *req.Enabled, req.Threshold)
	if err != nil {
		h.commandError(c, errAutoShutoff, "auto_shutoff_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusUpdated, "relay": st})
}

// @Summary      Current mode
// @Tags         mode
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "mode, manual_toggle"
// @Router       /api/v1/mode [get]
func (h *Handler) getMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":          h.services.Mode.Current(),
		"manual_toggle": h.services.Mode.AllowsManualToggle(),
	})
}

// @Summary      Switch mode
// @Description  Waits for the device to confirm. The cached mode only changes on success.
// @Tags         mode
// @Accept       json
// @Produce      json
// @Param        body  body   SetModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}  "status, mode"
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/mode [post]
func (h *Handler) setMode(c *gin.Context) {
	var req SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	mode, ok := models.ParseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidMode.Error()})
		return
	}

	err := h.services.Mode.SwitchMode(c.Request.Context(), mode)
	var cerr *client.Error
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": statusModeSet, "mode": h.services.Mode.Current()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": errSwitchMode,
			"cause": client.Cause(err),
			"kind":  cerr.Kind,
			"mode":  h.services.Mode.Current(),
		})
	default:
		h.commandError(c, errSwitchMode, "mode_switch_failed", err, "mode", mode)
	}
}
