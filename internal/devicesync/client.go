package devicesync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cat_feeder/internal/bus"
	"cat_feeder/internal/metrics"
	"cat_feeder/internal/models"
)

const (
	// IdleStatus is the operational status a feeder reports when it can take a
	// feed command.
	IdleStatus  = "IDLE"
	FeedCommand = "feed"

	DefaultFetchTimeout = 5 * time.Second
	DefaultMaxDevices   = 64
)

var (
	ErrFeedRejected    = errors.New("devicesync: feed rejected")
	ErrInvalidSchedule = errors.New("devicesync: invalid schedule")
	ErrClosed          = errors.New("devicesync: client closed")
	ErrInvalidDeviceID = errors.New("devicesync: invalid device id")
	ErrTooManyDevices  = errors.New("devicesync: too many devices")
)

// Snapshot is a copy of everything the hub knows about one feeder.
type Snapshot struct {
	ID           string                 `json:"id"`
	Fetch        FetchStatus            `json:"fetch"`
	PendingSince *time.Time             `json:"pending_since,omitempty"`
	Schedule     models.FeedingSchedule `json:"schedule"`
	Status       string                 `json:"status"`
	Address      string                 `json:"address,omitempty"`
	UpdateURL    string                 `json:"update_url,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Client tracks one feeder over the bus: the schedule fetch with its timeout,
// the one-way schedule and feed publishes, and the status and address the
// feeder pushes. It is safe for concurrent use.
type Client struct {
	id      string
	topics  Topics
	bus     bus.Bus
	timeout time.Duration
	loc     *time.Location
	cfg     settings

	mu           sync.Mutex
	fetch        FetchStatus
	attempt      uint64
	timer        Timer
	pendingSince time.Time
	schedule     models.FeedingSchedule
	nextSlotID   uint64
	status       string
	address      string
	updatedAt    time.Time
	closed       bool
}

// NewClient builds a client for device id. It does not touch the bus until
// Attach.
func NewClient(b bus.Bus, id string, opts Options, options ...Option) (*Client, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	cfg := defaultSettings()
	for _, o := range options {
		o(&cfg)
	}
	return newClient(b, id, opts.withDefaults(), cfg), nil
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidDeviceID
	}
	if strings.ContainsAny(id, "/+#") {
		return "", fmt.Errorf("%w: %q contains a topic separator or wildcard", ErrInvalidDeviceID, id)
	}
	return id, nil
}

func newClient(b bus.Bus, id string, opts Options, cfg settings) *Client {
	c := &Client{
		id:      id,
		bus:     b,
		timeout: opts.FetchTimeout,
		loc:     opts.Location,
		cfg:     cfg,
		status:  IdleStatus,
	}
	c.cfg.log = cfg.log.Named(id)
	c.schedule = c.defaultSchedule()
	c.updatedAt = c.cfg.now()
	return c
}

func (c *Client) defaultSchedule() models.FeedingSchedule {
	out := make(models.FeedingSchedule, models.DefaultSlotCount)
	for i := range out {
		c.nextSlotID++
		out[i] = models.FeedingSlot{ID: c.nextSlotID}
	}
	return out
}

// ID returns the device id.
func (c *Client) ID() string { return c.id }

// Attach subscribes to the reply, status and address topics. Subscriptions made
// while the bus is down go out on the next connect.
func (c *Client) Attach() error {
	subs := []struct {
		topic string
		h     bus.Handler
	}{
		{c.topics.FeedingSchedule(c.id), c.handleSchedule},
		{c.topics.StateChange(c.id), c.handleStatus},
		{c.topics.IPAddress(c.id), c.handleAddress},
	}
	for _, s := range subs {
		if err := c.bus.Subscribe(s.topic, s.h); err != nil {
			return fmt.Errorf("attach %s: %w", c.id, err)
		}
	}
	return nil
}

// Close stops any pending timer and unsubscribes the three listening topics.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// an in-flight Fetch or timer must not touch the closed client
	c.attempt++
	if c.fetch == FetchPending {
		c.fetch = FetchIdle
		c.pendingSince = time.Time{}
	}
	c.mu.Unlock()

	return c.bus.Unsubscribe(
		c.topics.FeedingSchedule(c.id),
		c.topics.StateChange(c.id),
		c.topics.IPAddress(c.id),
	)
}

// Fetch asks the feeder for its schedule and starts the reply timer. While the
// bus is not connected it does nothing and returns bus.ErrNotConnected. A fetch
// while one is pending restarts the timer.
func (c *Client) Fetch() error {
	if c.bus.State() != bus.StateConnected {
		c.cfg.log.Debugw("device_fetch_skipped", "device_id", c.id, "bus", c.bus.State().String())
		return bus.ErrNotConnected
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prevStatus, prevSince := c.fetch, c.pendingSince
	if c.timer != nil {
		c.timer.Stop()
	}
	c.attempt++
	attempt := c.attempt
	c.fetch = FetchPending
	c.pendingSince = c.cfg.now()
	c.timer = c.cfg.afterFunc(c.timeout, func() { c.expire(attempt) })
	c.mu.Unlock()

	if err := c.bus.Publish(c.topics.GetFeedingSchedule(c.id), nil); err != nil {
		c.mu.Lock()
		if c.attempt == attempt && c.fetch == FetchPending {
			if c.timer != nil {
				c.timer.Stop()
				c.timer = nil
			}
			c.fetch, c.pendingSince = prevStatus, prevSince
		}
		c.mu.Unlock()
		c.cfg.log.Warnw("device_fetch_publish_failed", "device_id", c.id, "err", err)
		return fmt.Errorf("fetch schedule for %s: %w", c.id, err)
	}

	c.cfg.metrics.Fetch(metrics.FetchStarted)
	c.cfg.log.Debugw("device_fetch_started", "device_id", c.id, "attempt", attempt, "timeout", c.timeout)
	c.notify()
	return nil
}

func (c *Client) expire(attempt uint64) {
	c.mu.Lock()
	if c.attempt != attempt || c.fetch != FetchPending {
		// reply won the race or a newer fetch took over
		c.mu.Unlock()
		return
	}
	c.fetch = FetchTimedOut
	c.timer = nil
	c.updatedAt = c.cfg.now()
	c.mu.Unlock()

	c.cfg.metrics.Fetch(metrics.FetchTimedOut)
	c.cfg.log.Warnw("device_fetch_timed_out", "device_id", c.id, "attempt", attempt, "timeout", c.timeout)
	c.notify()
}

func (c *Client) handleSchedule(_ string, payload []byte) {
	var wire []models.WireSlot
	if err := json.Unmarshal(payload, &wire); err != nil || wire == nil {
		c.cfg.log.Debugw("device_schedule_malformed", "device_id", c.id, "payload", string(payload), "err", err)
		return
	}
	for i, w := range wire {
		slot := models.FeedingSlot{Hour: w.Hour, Minute: w.Minute, Portion: w.Portion}
		if err := slot.Validate(); err != nil {
			c.cfg.log.Debugw("device_schedule_malformed", "device_id", c.id, "slot", i, "err", err)
			return
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	schedule := make(models.FeedingSchedule, 0, len(wire))
	for _, w := range wire {
		hour, minute := c.toLocal(w.Hour, w.Minute)
		c.nextSlotID++
		schedule = append(schedule, models.FeedingSlot{
			ID:      c.nextSlotID,
			Hour:    hour,
			Minute:  minute,
			Portion: w.Portion,
		})
	}
	c.schedule = schedule.Sorted()
	c.updatedAt = c.cfg.now()

	outcome := metrics.FetchLate
	if c.fetch == FetchPending {
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.fetch = FetchSuccess
		outcome = metrics.FetchSuccess
	}
	c.mu.Unlock()

	c.cfg.metrics.Fetch(outcome)
	c.cfg.log.Debugw("device_schedule_received", "device_id", c.id, "slots", len(wire), "outcome", outcome)
	c.notify()
}

func (c *Client) handleStatus(_ string, payload []byte) {
	status := strings.TrimSpace(string(payload))
	c.mu.Lock()
	c.status = status
	c.updatedAt = c.cfg.now()
	c.mu.Unlock()
	c.cfg.log.Debugw("device_status", "device_id", c.id, "status", status)
	c.notify()
}

func (c *Client) handleAddress(_ string, payload []byte) {
	address := strings.TrimSpace(string(payload))
	c.mu.Lock()
	c.address = address
	c.updatedAt = c.cfg.now()
	c.mu.Unlock()
	c.cfg.log.Debugw("device_address", "device_id", c.id, "address", address)
	c.notify()
}

// PublishSchedule validates and sorts schedule, converts it to UTC and sends it
// to the feeder. On success it becomes the displayed schedule. Slots without
// an id get a fresh one.
func (c *Client) PublishSchedule(schedule models.FeedingSchedule) error {
	if c.bus.State() != bus.StateConnected {
		return bus.ErrNotConnected
	}
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	sorted := schedule.Sorted()
	wire := make([]models.WireSlot, len(sorted))
	for i, s := range sorted {
		hour, minute := c.toWire(s.Hour, s.Minute)
		wire[i] = models.WireSlot{Hour: hour, Minute: minute, Portion: s.Portion}
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode schedule for %s: %w", c.id, err)
	}
	if err := c.bus.Publish(c.topics.SetFeedingSchedule(c.id), payload); err != nil {
		return fmt.Errorf("publish schedule for %s: %w", c.id, err)
	}

	c.mu.Lock()
	for i := range sorted {
		if sorted[i].ID == 0 {
			c.nextSlotID++
			sorted[i].ID = c.nextSlotID
		}
	}
	c.schedule = sorted
	c.updatedAt = c.cfg.now()
	c.mu.Unlock()

	c.cfg.log.Infow("device_schedule_published", "device_id", c.id, "slots", len(sorted))
	c.notify()
	return nil
}

// PublishFeedCommand tells the feeder to dispense one portion now. It is
// rejected with ErrFeedRejected unless the feeder last reported IDLE and no
// fetch is pending.
func (c *Client) PublishFeedCommand() error {
	if c.bus.State() != bus.StateConnected {
		return bus.ErrNotConnected
	}
	c.mu.Lock()
	status, fetch := c.status, c.fetch
	c.mu.Unlock()

	switch {
	case status != IdleStatus:
		return fmt.Errorf("%w: device %s is %q", ErrFeedRejected, c.id, status)
	case fetch == FetchPending:
		return fmt.Errorf("%w: schedule fetch pending for %s", ErrFeedRejected, c.id)
	}

	if err := c.bus.Publish(c.topics.Command(c.id), []byte(FeedCommand)); err != nil {
		return fmt.Errorf("publish feed command for %s: %w", c.id, err)
	}
	c.cfg.log.Infow("device_feed_sent", "device_id", c.id)
	return nil
}

// Snapshot returns a copy of the client's state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:        c.id,
		Fetch:     c.fetch,
		Schedule:  c.schedule.Clone(),
		Status:    c.status,
		Address:   c.address,
		UpdatedAt: c.updatedAt,
	}
	if c.fetch == FetchPending {
		since := c.pendingSince
		s.PendingSince = &since
	}
	if c.address != "" {
		s.UpdateURL = "http://" + c.address + "/update"
	}
	return s
}

func (c *Client) notify() {
	if c.cfg.notify == nil {
		return
	}
	c.cfg.notify(c.Snapshot())
}

// toLocal reads a UTC wall-clock time as local hour and minute, anchored to
// today's UTC date.
func (c *Client) toLocal(hour, minute int) (int, int) {
	day := c.cfg.now().UTC()
	t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC).In(c.loc)
	return t.Hour(), t.Minute()
}

// toWire is the inverse of toLocal: it looks for the local date next to
// today's UTC date on which hour:minute falls inside that UTC day. On a DST
// transition day one local hour can map to two UTC times; either may be
// returned. A local time with no match (skipped by DST) keeps today's offset.
func (c *Client) toWire(hour, minute int) (int, int) {
	day := c.cfg.now().UTC()
	for _, shift := range []int{-1, 0, 1} {
		local := time.Date(day.Year(), day.Month(), day.Day()+shift, hour, minute, 0, 0, c.loc)
		if local.Hour() != hour || local.Minute() != minute {
			continue // inside a DST gap
		}
		if u := local.UTC(); u.Year() == day.Year() && u.YearDay() == day.YearDay() {
			return u.Hour(), u.Minute()
		}
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, c.loc).UTC()
	return t.Hour(), t.Minute()
}
