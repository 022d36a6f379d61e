package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"battery_dashboard/internal/models"
	"battery_dashboard/internal/service"
)

func TestGetLogs(t *testing.T) {
	m := newMocks()
	m.logs.entries = []models.ActivityEntry{
		{ID: "b", Action: "Relay activated", Kind: models.KindSuccess},
		{ID: "a", Action: "System started", Kind: models.KindInfo},
	}
	r := newTestRouter(m.service(), Options{})

	w := do(t, r, http.MethodGet, "/api/v1/logs?kind=success&source=local&since=2025-08-01&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Count   int                    `json:"count"`
		Entries []models.ActivityEntry `json:"entries"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 || resp.Entries[0].ID != "b" {
		t.Fatalf("resp = %+v", resp)
	}
	f := m.logs.lastFilter
	if f.Kind != "success" || f.Source != "local" || f.Limit != 5 {
		t.Fatalf("filter = %+v", f)
	}
	if !f.Since.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("since = %v", f.Since)
	}
}

func TestGetLogs_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		path string
		err  error
	}{
		{"bad since", "/api/v1/logs?since=yesterday", nil},
		{"bad limit", "/api/v1/logs?limit=-3", nil},
		{"non-numeric limit", "/api/v1/logs?limit=ten", nil},
		{"filter rejected", "/api/v1/logs?kind=debug", fmt.Errorf("%w: unknown kind", service.ErrInvalidFilter)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMocks()
			m.logs.err = tc.err
			r := newTestRouter(m.service(), Options{})
			if w := do(t, r, http.MethodGet, tc.path, ""); w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetLogs_InternalError(t *testing.T) {
	m := newMocks()
	m.logs.err = errors.New("boom")
	r := newTestRouter(m.service(), Options{})
	if w := do(t, r, http.MethodGet, "/api/v1/logs", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestParseQueryTime(t *testing.T) {
	for _, s := range []string{"2025-08-27T15:04:05Z", "2025-08-27 15:04:05", "2025-08-27"} {
		if _, err := parseQueryTime(s); err != nil {
			t.Fatalf("%q: %v", s, err)
		}
	}
	if _, err := parseQueryTime("27/08/2025"); err == nil {
		t.Fatalf("expected error")
	}
}
