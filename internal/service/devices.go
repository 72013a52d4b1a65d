package service

import (
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/models"
)

// DeviceService is the HTTP-facing view over the device registry. Device ids
// the hub has not seen yet are tracked on first use.
type DeviceService struct {
	registry *devicesync.Registry
}

func NewDeviceService(registry *devicesync.Registry) *DeviceService {
	return &DeviceService{registry: registry}
}

func (s *DeviceService) List() []devicesync.Snapshot {
	return s.registry.Snapshots()
}

func (s *DeviceService) Get(id string) (devicesync.Snapshot, error) {
	c, err := s.registry.Get(id)
	if err != nil {
		return devicesync.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (s *DeviceService) Fetch(id string) (devicesync.Snapshot, error) {
	c, err := s.registry.Get(id)
	if err != nil {
		return devicesync.Snapshot{}, err
	}
	if err := c.Fetch(); err != nil {
		return devicesync.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (s *DeviceService) SetSchedule(id string, schedule models.FeedingSchedule) (devicesync.Snapshot, error) {
	c, err := s.registry.Get(id)
	if err != nil {
		return devicesync.Snapshot{}, err
	}
	if err := c.PublishSchedule(schedule); err != nil {
		return devicesync.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (s *DeviceService) Feed(id string) error {
	c, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return c.PublishFeedCommand()
}

// Watch registers fn for every device snapshot change.
func (s *DeviceService) Watch(fn func(devicesync.Snapshot)) {
	s.registry.OnChange(fn)
}
