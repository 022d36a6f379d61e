package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"battery_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errSinceInvalid = "invalid 'since' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"
	errLimitInvalid = "invalid 'limit'; use a non-negative integer"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// @Summary      List activity
// @Description  Newest-first activity entries, local and device-sourced. 'since' is inclusive.
// @Tags         logs
// @Produce      json
// @Param        kind    query   string  false  "Entry kind"  Enums(info,warning,error,success)
// @Param        source  query   string  false  "Entry source"  Enums(local,device)
// @Param        since   query   string  false  "Oldest timestamp (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        limit   query   int     false  "Maximum entries, 0 for all"
// @Success      200     {object}  map[string]interface{}  "count, entries"
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /api/v1/logs [get]
func (h *Handler) getLogs(c *gin.Context) {
	ctx := c.Request.Context()
	f := service.LogFilter{
		Kind:   c.Query("kind"),
		Source: c.Query("source"),
	}
	if qs := c.Query("since"); qs != "" {
		since, err := parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errSinceInvalid})
			return
		}
		f.Since = since
	}
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		f.Limit = n
	}

	entries, err := h.services.EventLog.List(ctx, f)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"kind", f.Kind, "source", f.Source, "since", f.Since)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format %q", s)
}
