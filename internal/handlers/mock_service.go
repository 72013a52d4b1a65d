package handlers

import (
	"context"
	"sync"

	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/models"
	"cat_feeder/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockLogs struct {
	mu      sync.Mutex
	entries map[string][]models.LogEntry

	lastGetID   string
	lastID      string
	lastMessage string
	appendCalls int
}

func (m *mockLogs) Get(id string) []models.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastGetID = id
	out := m.entries[id]
	if out == nil {
		out = []models.LogEntry{}
	}
	return out
}

func (m *mockLogs) Append(_ context.Context, id, message string, nowMillis int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	m.lastID = id
	m.lastMessage = message
	if m.entries == nil {
		m.entries = make(map[string][]models.LogEntry)
	}
	m.entries[id] = append([]models.LogEntry{{Time: nowMillis, Message: message}}, m.entries[id]...)
}

type mockDevices struct {
	mu        sync.Mutex
	snapshots []devicesync.Snapshot
	snapshot  devicesync.Snapshot
	err       error

	lastID       string
	lastSchedule models.FeedingSchedule
	feedCalls    int
	fetchCalls   int
	watchers     []func(devicesync.Snapshot)
}

func (m *mockDevices) List() []devicesync.Snapshot {
	return m.snapshots
}

func (m *mockDevices) Get(id string) (devicesync.Snapshot, error) {
	m.lastID = id
	return m.snapshot, m.err
}

func (m *mockDevices) Fetch(id string) (devicesync.Snapshot, error) {
	m.lastID = id
	m.fetchCalls++
	return m.snapshot, m.err
}

func (m *mockDevices) SetSchedule(id string, schedule models.FeedingSchedule) (devicesync.Snapshot, error) {
	m.lastID = id
	m.lastSchedule = schedule
	return m.snapshot, m.err
}

func (m *mockDevices) Feed(id string) error {
	m.lastID = id
	m.feedCalls++
	return m.err
}

func (m *mockDevices) Watch(fn func(devicesync.Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

func (m *mockDevices) emit(s devicesync.Snapshot) {
	m.mu.Lock()
	watchers := append([]func(devicesync.Snapshot){}, m.watchers...)
	m.mu.Unlock()
	for _, fn := range watchers {
		fn(s)
	}
}

type mockMonitoring struct {
	view      service.ConnectionView
	connected bool
	watchers  []func(service.ConnectionView)
}

func (m *mockMonitoring) GetConnection() service.ConnectionView { return m.view }
func (m *mockMonitoring) Connected() bool                        { return m.connected }
func (m *mockMonitoring) WatchConnection(fn func(service.ConnectionView)) {
	m.watchers = append(m.watchers, fn)
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil)
	return h.InitRoutes()
}
