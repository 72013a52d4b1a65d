package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cat_feeder/internal/bus"
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/models"
	"cat_feeder/internal/service"
)

func lokiSnapshot() devicesync.Snapshot {
	return devicesync.Snapshot{
		ID:       "loki",
		Fetch:    devicesync.FetchSuccess,
		Status:   devicesync.IdleStatus,
		Address:  "192.168.1.40",
		Schedule: models.FeedingSchedule{{ID: 4, Hour: 8, Minute: 0, Portion: 2}},
	}
}

func doJSON(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, url, nil)
	} else {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name       string
		mon        *mockMonitoring
		wantStatus string
		wantBus    string
	}{
		{"connected", &mockMonitoring{view: service.ConnectionView{State: "CONNECTED"}, connected: true}, statusOK, "CONNECTED"},
		{"reconnecting", &mockMonitoring{view: service.ConnectionView{State: "RECONNECTING"}}, statusDegraded, "RECONNECTING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Monitoring: tc.mon})
			w := doJSON(t, r, http.MethodGet, "/health", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d", w.Code)
			}
			var out map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out["status"] != tc.wantStatus || out["bus"] != tc.wantBus {
				t.Fatalf("unexpected body: %v", out)
			}
		})
	}
}

func TestGetConnection(t *testing.T) {
	mon := &mockMonitoring{view: service.ConnectionView{State: "ERROR", Error: "connection refused"}}
	r := newTestRouter(&service.Service{Monitoring: mon})

	w := doJSON(t, r, http.MethodGet, "/api/v1/connection", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var got service.ConnectionView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != mon.view {
		t.Fatalf("got %+v, want %+v", got, mon.view)
	}
}

func TestListDevices(t *testing.T) {
	dev := &mockDevices{snapshots: []devicesync.Snapshot{lokiSnapshot()}}
	r := newTestRouter(&service.Service{Devices: dev})

	w := doJSON(t, r, http.MethodGet, "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0]["fetch"] != "SUCCESS" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestDeviceEndpoints(t *testing.T) {
	cases := []struct {
		name     string
		method   string
		url      string
		body     string
		err      error
		wantCode int
	}{
		{"get_ok", http.MethodGet, "/api/v1/devices/loki", "", nil, http.StatusOK},
		{"get_bad_id", http.MethodGet, "/api/v1/devices/loki", "", devicesync.ErrInvalidDeviceID, http.StatusBadRequest},
		{"get_over_limit", http.MethodGet, "/api/v1/devices/ghost", "", devicesync.ErrTooManyDevices, http.StatusConflict},
		{"get_closed", http.MethodGet, "/api/v1/devices/loki", "", devicesync.ErrClosed, http.StatusServiceUnavailable},
		{"get_unexpected", http.MethodGet, "/api/v1/devices/loki", "", errors.New("boom"), http.StatusInternalServerError},

		{"fetch_ok", http.MethodPost, "/api/v1/devices/loki/fetch", "", nil, http.StatusAccepted},
		{"fetch_offline", http.MethodPost, "/api/v1/devices/loki/fetch", "", bus.ErrNotConnected, http.StatusConflict},
		{"fetch_publish_failed", http.MethodPost, "/api/v1/devices/loki/fetch", "", fmt.Errorf("publish: %w", errors.New("timeout")), http.StatusInternalServerError},

		{"schedule_ok", http.MethodPut, "/api/v1/devices/loki/schedule", `[{"hour":7,"minute":30,"portion":2}]`, nil, http.StatusOK},
		{"schedule_empty_ok", http.MethodPut, "/api/v1/devices/loki/schedule", `[]`, nil, http.StatusOK},
		{"schedule_not_json", http.MethodPut, "/api/v1/devices/loki/schedule", `{"hour":7}`, nil, http.StatusBadRequest},
		{"schedule_invalid", http.MethodPut, "/api/v1/devices/loki/schedule", `[{"hour":25}]`,
			fmt.Errorf("%w: %w", devicesync.ErrInvalidSchedule, models.ErrInvalidSlot), http.StatusBadRequest},
		{"schedule_offline", http.MethodPut, "/api/v1/devices/loki/schedule", `[]`, bus.ErrNotConnected, http.StatusConflict},

		{"feed_ok", http.MethodPost, "/api/v1/devices/loki/feed", "", nil, http.StatusAccepted},
		{"feed_busy", http.MethodPost, "/api/v1/devices/loki/feed", "", devicesync.ErrFeedRejected, http.StatusConflict},
		{"feed_offline", http.MethodPost, "/api/v1/devices/loki/feed", "", bus.ErrNotConnected, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := &mockDevices{snapshot: lokiSnapshot(), err: tc.err}
			r := newTestRouter(&service.Service{Devices: dev})

			w := doJSON(t, r, tc.method, tc.url, tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantCode >= 400 {
				var out struct {
					Error string `json:"error"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Error == "" {
					t.Fatalf("expected error body, got %s", w.Body.String())
				}
			}
			if tc.body != `{"hour":7}` && dev.lastID != "loki" {
				t.Fatalf("service called with id %q", dev.lastID)
			}
		})
	}
}

func TestSetSchedule_PassesBody(t *testing.T) {
	dev := &mockDevices{snapshot: lokiSnapshot()}
	r := newTestRouter(&service.Service{Devices: dev})

	w := doJSON(t, r, http.MethodPut, "/api/v1/devices/loki/schedule",
		`[{"hour":19,"minute":0,"portion":1},{"hour":7,"minute":30,"portion":2}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", w.Code, w.Body.String())
	}
	want := models.FeedingSchedule{{Hour: 19, Minute: 0, Portion: 1}, {Hour: 7, Minute: 30, Portion: 2}}
	if len(dev.lastSchedule) != len(want) {
		t.Fatalf("schedule: got %+v", dev.lastSchedule)
	}
	for i := range want {
		if dev.lastSchedule[i] != want[i] {
			t.Fatalf("slot %d: got %+v, want %+v", i, dev.lastSchedule[i], want[i])
		}
	}
}

func TestFeed_CallsServiceOnce(t *testing.T) {
	dev := &mockDevices{}
	r := newTestRouter(&service.Service{Devices: dev})

	w := doJSON(t, r, http.MethodPost, "/api/v1/devices/gatito/feed", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d", w.Code)
	}
	if dev.feedCalls != 1 || dev.lastID != "gatito" {
		t.Fatalf("Feed calls=%d id=%q", dev.feedCalls, dev.lastID)
	}
}
