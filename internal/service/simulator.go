package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"cat_feeder/internal/bus"
	"cat_feeder/internal/config"
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/logger"
	"cat_feeder/internal/models"
)

// Feeder operational states reported on stateChange.
const (
	StatusIdle    = devicesync.IdleStatus
	StatusFeeding = "FEEDING"
)

const neverRan = -1

type simulatedSlot struct {
	models.WireSlot
	lastDayRan int // day of year, neverRan until the first run
}

// SimulatorService is an in-process feeder. It answers the hub on the bus the
// way the firmware does, so the hub can be run and demoed without hardware.
type SimulatorService struct {
	bus          bus.Bus
	id           string
	address      string
	feedDuration time.Duration
	logInterval  time.Duration
	topics       devicesync.Topics
	log          *logger.Logger
	now          func() time.Time

	mu            sync.Mutex
	schedule      []simulatedSlot
	status        string
	feedingUntil  time.Time
	lastHeartbeat time.Time
}

// NewSimulatorService builds a feeder with the firmware's factory schedule:
// 08:00, 12:00 and 18:00 UTC, two portions each.
func NewSimulatorService(b bus.Bus, cfg config.SimulatorConfig, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		bus:          b,
		id:           cfg.DeviceID,
		address:      cfg.Address,
		feedDuration: cfg.FeedDuration,
		logInterval:  cfg.LogInterval,
		log:          logger.OrNop(log),
		now:          time.Now,
		status:       StatusIdle,
		schedule: []simulatedSlot{
			{WireSlot: models.WireSlot{Hour: 8, Minute: 0, Portion: 2}, lastDayRan: neverRan},
			{WireSlot: models.WireSlot{Hour: 12, Minute: 0, Portion: 2}, lastDayRan: neverRan},
			{WireSlot: models.WireSlot{Hour: 18, Minute: 0, Portion: 2}, lastDayRan: neverRan},
		},
	}
}

// Run subscribes to the feeder's request topics and advances the feeder every
// tick until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	s.bus.OnStateChange(func(st bus.Status) {
		if st.State == bus.StateConnected {
			s.announce()
		}
	})
	if err := s.attach(); err != nil {
		s.log.Errorw("simulator_attach_failed", "device_id", s.id, "err", err)
		return
	}
	defer func() {
		if err := s.bus.Unsubscribe(
			s.topics.GetFeedingSchedule(s.id),
			s.topics.SetFeedingSchedule(s.id),
			s.topics.Command(s.id),
		); err != nil {
			s.log.Warnw("simulator_detach_failed", "device_id", s.id, "err", err)
		}
	}()

	if s.bus.State() == bus.StateConnected {
		s.announce()
	}
	s.log.Infow("simulator_started", "device_id", s.id, "tick", tick)

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("simulator_stopped", "device_id", s.id)
			return
		case now := <-t.C:
			s.step(now)
		}
	}
}

func (s *SimulatorService) attach() error {
	for topic, h := range map[string]bus.Handler{
		s.topics.GetFeedingSchedule(s.id): s.handleScheduleRequest,
		s.topics.SetFeedingSchedule(s.id): s.handleScheduleUpdate,
		s.topics.Command(s.id):            s.handleCommand,
	} {
		if err := s.bus.Subscribe(topic, h); err != nil {
			return err
		}
	}
	return nil
}

// announce publishes what the firmware sends after (re)connecting.
func (s *SimulatorService) announce() {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	s.publish(s.topics.IPAddress(s.id), []byte(s.address))
	s.publish(s.topics.StateChange(s.id), []byte(status))
	s.emit("Connected")
}

// step finishes a feeding that has run its course and starts any scheduled
// feeding that is due. Each slot runs at most once per day.
func (s *SimulatorService) step(now time.Time) {
	now = now.UTC()
	var (
		finished bool
		started  *models.WireSlot
	)

	s.mu.Lock()
	if s.status == StatusFeeding && !now.Before(s.feedingUntil) {
		s.status = StatusIdle
		finished = true
	}
	if s.status == StatusIdle {
		for i := range s.schedule {
			slot := &s.schedule[i]
			if slot.lastDayRan == now.YearDay() || slot.Hour != now.Hour() || slot.Minute != now.Minute() {
				continue
			}
			slot.lastDayRan = now.YearDay()
			if slot.Portion == 0 {
				continue
			}
			s.status = StatusFeeding
			s.feedingUntil = now.Add(s.feedDuration)
			w := slot.WireSlot
			started = &w
			break
		}
	}
	heartbeat := s.logInterval > 0 && now.Sub(s.lastHeartbeat) >= s.logInterval
	if heartbeat {
		s.lastHeartbeat = now
	}
	s.mu.Unlock()

	if finished {
		s.publish(s.topics.StateChange(s.id), []byte(StatusIdle))
		s.emit("Feeding done")
	}
	if started != nil {
		s.publish(s.topics.StateChange(s.id), []byte(StatusFeeding))
		s.emit(fmt.Sprintf("Feeding time %02d:%02d, portion %d", started.Hour, started.Minute, started.Portion))
	}
	if heartbeat && started == nil && !finished {
		s.emit("Alive")
	}
}

func (s *SimulatorService) handleScheduleRequest(string, []byte) {
	s.mu.Lock()
	wire := make([]models.WireSlot, len(s.schedule))
	for i, slot := range s.schedule {
		wire[i] = slot.WireSlot
	}
	s.mu.Unlock()

	payload, err := json.Marshal(wire)
	if err != nil {
		s.log.Errorw("simulator_encode_failed", "device_id", s.id, "err", err)
		return
	}
	s.publish(s.topics.FeedingSchedule(s.id), payload)
}

func (s *SimulatorService) handleScheduleUpdate(_ string, payload []byte) {
	var wire []models.WireSlot
	if err := json.Unmarshal(payload, &wire); err != nil {
		s.log.Debugw("simulator_schedule_rejected", "device_id", s.id, "err", err)
		return
	}
	slots := make([]simulatedSlot, 0, len(wire))
	for _, w := range wire {
		if err := (models.FeedingSlot{Hour: w.Hour, Minute: w.Minute, Portion: w.Portion}).Validate(); err != nil {
			s.log.Debugw("simulator_schedule_rejected", "device_id", s.id, "err", err)
			return
		}
		slots = append(slots, simulatedSlot{WireSlot: w, lastDayRan: neverRan})
	}

	s.mu.Lock()
	s.schedule = slots
	s.mu.Unlock()
	s.emit(fmt.Sprintf("Schedule updated, %d slots", len(slots)))
}

func (s *SimulatorService) handleCommand(_ string, payload []byte) {
	if strings.TrimSpace(string(payload)) != devicesync.FeedCommand {
		s.log.Debugw("simulator_unknown_command", "device_id", s.id, "command", string(payload))
		return
	}
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return
	}
	s.status = StatusFeeding
	s.feedingUntil = s.now().UTC().Add(s.feedDuration)
	s.mu.Unlock()

	s.publish(s.topics.StateChange(s.id), []byte(StatusFeeding))
	s.emit("Manual feeding")
}

// Status returns the simulated operational status.
func (s *SimulatorService) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *SimulatorService) emit(message string) {
	payload, err := json.Marshal(models.LogBody{ID: s.id, Message: message})
	if err != nil {
		return
	}
	s.publish(s.topics.Logs(s.id), payload)
}

func (s *SimulatorService) publish(topic string, payload []byte) {
	if err := s.bus.Publish(topic, payload); err != nil {
		s.log.Debugw("simulator_publish_failed", "topic", topic, "err", err)
	}
}
