package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jmailbox/internal/models"
	"jmailbox/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	entries := []models.LogEntry{
		{ID: "l2", Timestamp: now.Add(time.Second), Device: "D1", Level: models.LevelError, Message: "jam"},
		{ID: "l1", Timestamp: now, Device: "D1", Level: models.LevelInfo, Message: "boot"},
	}
	logs := &mockEventLog{logs: entries, levels: map[string]int{"INFO": 1, "ERROR": 1}}
	r := newTestRouter(&service.Service{EventLog: logs})

	// Invalid 'from' → 400, service not called
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs?from=notatime", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs?limit=-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'limit', got %d", w.Code)
	}
	if logs.listCalls != 0 {
		t.Fatalf("service must not be called on parse errors, calls=%d", logs.listCalls)
	}

	// Valid query: filters are passed through, 'to' date-only is end of day
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/logs?from=2025-08-01&to=2025-08-31&level=error,WARNING&level=info&device=D1&limit=50", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	f := logs.lastFilter
	if !f.From.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from=%v", f.From)
	}
	if !f.To.Equal(time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)) {
		t.Fatalf("to=%v", f.To)
	}
	if len(f.Levels) != 3 || f.Levels[0] != "error" || f.Levels[2] != "info" {
		t.Fatalf("levels=%v", f.Levels)
	}
	if len(f.Devices) != 1 || f.Devices[0] != "D1" || f.Limit != 50 {
		t.Fatalf("devices=%v limit=%d", f.Devices, f.Limit)
	}

	var resp struct {
		Count  int               `json:"count"`
		Events []models.LogEntry `json:"events"`
		Levels map[string]int    `json:"levels"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 || resp.Events[0].ID != "l2" || resp.Levels["ERROR"] != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLogsHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid filter", service.ErrInvalidFilter, http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{EventLog: &mockEventLog{err: tc.err}})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))
			if w.Code != tc.want {
				t.Fatalf("got %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAlertsHandler(t *testing.T) {
	logs := &mockEventLog{summary: service.AlertSummary{
		Total: 3, High: 1, Today: 2,
		Alerts: []models.AlertEntry{{ID: "a3", Severity: 3, Reason: "tamper"}},
	}}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if logs.lastAlertFilter.Limit != 5 {
		t.Fatalf("limit not passed: %+v", logs.lastAlertFilter)
	}
	var got service.AlertSummary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Total != 3 || got.High != 1 || got.Today != 2 || len(got.Alerts) != 1 {
		t.Fatalf("unexpected summary: %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestParseQueryTime(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-08-27T15:04:05Z", want: time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC)},
		{in: "2025-08-27T18:04:05+03:00", want: time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC)},
		{in: "2025-08-27 15:04:05", want: time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC)},
		{in: "2025-08-27", want: time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)},
		{in: "27/08/2025", wantErr: true},
	}
	for _, c := range cases {
		got, err := parseQueryTime(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", c.in)
			}
			continue
		}
		if err != nil || !got.Equal(c.want) {
			t.Fatalf("%q: got %v, %v; want %v", c.in, got, err, c.want)
		}
	}
}
