package service

import (
	"context"
	"time"

	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/models"
)

// Logs exposes the per-device log trail.
type Logs interface {
	Get(id string) []models.LogEntry
	Append(ctx context.Context, id, message string, nowMillis int64)
}

// Devices exposes feeder state and the commands the hub can send.
type Devices interface {
	List() []devicesync.Snapshot
	Get(id string) (devicesync.Snapshot, error)
	Fetch(id string) (devicesync.Snapshot, error)
	SetSchedule(id string, schedule models.FeedingSchedule) (devicesync.Snapshot, error)
	Feed(id string) error
	Watch(fn func(devicesync.Snapshot))
}

// Monitoring exposes the bus connection state.
type Monitoring interface {
	GetConnection() ConnectionView
	Connected() bool
	WatchConnection(fn func(ConnectionView))
}

// Simulator runs an emulated feeder until ctx is canceled.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates everything the HTTP layer calls.
type Service struct {
	Logs
	Devices
	Monitoring
}

func NewService(conn ConnectionSource, cache *LogCache, registry *devicesync.Registry) *Service {
	return &Service{
		Logs:       cache,
		Devices:    NewDeviceService(registry),
		Monitoring: NewMonitoringService(conn),
	}
}
