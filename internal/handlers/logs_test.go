package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cat_feeder/internal/models"
	"cat_feeder/internal/service"
)

func TestLogsHandler_Get(t *testing.T) {
	logs := &mockLogs{entries: map[string][]models.LogEntry{
		"loki": {{Time: 2000, Message: "Feeding done"}, {Time: 1000, Message: "Connected"}},
	}}
	r := newTestRouter(&service.Service{Logs: logs})

	cases := []struct {
		name     string
		url      string
		wantCode int
		wantLen  int
	}{
		{"known_device", "/logs?id=loki", http.StatusOK, 2},
		{"unknown_device_empty", "/logs?id=gatito", http.StatusOK, 0},
		{"trimmed_id", "/logs?id=%20loki%20", http.StatusOK, 2},
		{"missing_id", "/logs", http.StatusBadRequest, -1},
		{"blank_id", "/logs?id=%20", http.StatusBadRequest, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Fatalf("missing CORS header on %s", tc.url)
			}
			if tc.wantLen < 0 {
				var out struct {
					Error string `json:"error"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &out)
				if out.Error != errMissingID {
					t.Fatalf("error: got %q, want %q", out.Error, errMissingID)
				}
				return
			}
			var got []models.LogEntry
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshal: %v (body=%s)", err, w.Body.String())
			}
			if len(got) != tc.wantLen {
				t.Fatalf("len: got %d, want %d", len(got), tc.wantLen)
			}
		})
	}

	if logs.lastGetID != "loki" {
		t.Fatalf("Get called with %q, want trimmed id", logs.lastGetID)
	}
}

func TestLogsHandler_GetNewestFirst(t *testing.T) {
	logs := &mockLogs{entries: map[string][]models.LogEntry{
		"loki": {{Time: 2000, Message: "second"}, {Time: 1000, Message: "first"}},
	}}
	r := newTestRouter(&service.Service{Logs: logs})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?id=loki", nil))

	var got []models.LogEntry
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got[0].Message != "second" || got[0].Time != 2000 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestLogsHandler_Post(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantCode  int
		wantCalls int
	}{
		{"ok", `{"id":"loki","message":"Alive"}`, http.StatusOK, 1},
		{"missing_message", `{"id":"loki"}`, http.StatusBadRequest, 0},
		{"missing_id", `{"message":"Alive"}`, http.StatusBadRequest, 0},
		{"blank_id", `{"id":"  ","message":"Alive"}`, http.StatusBadRequest, 0},
		{"not_json", `id=loki`, http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := &mockLogs{}
			r := newTestRouter(&service.Service{Logs: logs})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/logs", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if logs.appendCalls != tc.wantCalls {
				t.Fatalf("Append calls: got %d, want %d", logs.appendCalls, tc.wantCalls)
			}
			if tc.wantCalls == 0 {
				return
			}
			var out map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out["status"] != statusOK {
				t.Fatalf("status field: got %q", out["status"])
			}
			if logs.lastID != "loki" || logs.lastMessage != "Alive" {
				t.Fatalf("Append got (%q, %q)", logs.lastID, logs.lastMessage)
			}
		})
	}
}

func TestLogsHandler_PostThenGet(t *testing.T) {
	r := newTestRouter(&service.Service{Logs: &mockLogs{}})

	for _, msg := range []string{"one", "two"} {
		w := httptest.NewRecorder()
		body, _ := json.Marshal(models.LogBody{ID: "michi", Message: msg})
		req := httptest.NewRequest(http.MethodPost, "/logs", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("post %q: got %d", msg, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?id=michi", nil))
	var got []models.LogEntry
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || got[0].Message != "two" {
		t.Fatalf("unexpected logs: %+v", got)
	}
}
