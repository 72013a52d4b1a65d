package devicesync

import (
	"time"

	"cat_feeder/internal/logger"
	"cat_feeder/internal/metrics"
)

// Options are the per-device settings shared by every client of a registry.
type Options struct {
	// FetchTimeout is how long a fetch waits for the reply. Zero means
	// DefaultFetchTimeout.
	FetchTimeout time.Duration
	// Location is the zone schedules are shown and edited in. Nil means
	// time.Local.
	Location *time.Location
	// FetchOnConnect makes the registry fetch every device each time the bus
	// becomes connected.
	FetchOnConnect bool
	// MaxDevices caps how many devices a registry tracks. Zero means
	// DefaultMaxDevices.
	MaxDevices int
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.MaxDevices <= 0 {
		o.MaxDevices = DefaultMaxDevices
	}
	return o
}

// Timer is the part of *time.Timer a fetch needs.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer that calls f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type settings struct {
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	afterFunc AfterFunc
	notify    func(Snapshot)
}

func defaultSettings() settings {
	return settings{
		log:       logger.Nop(),
		now:       time.Now,
		afterFunc: realAfterFunc,
	}
}

type Option func(*settings)

func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = logger.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithAfterFunc replaces time.AfterFunc for fetch timeouts.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *settings) { s.afterFunc = f }
}
