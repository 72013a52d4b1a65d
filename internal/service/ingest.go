package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"cat_feeder/internal/bus"
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/logger"
	"cat_feeder/internal/metrics"
	"cat_feeder/internal/models"
)

const appendTimeout = 5 * time.Second

// LogListener feeds every devices/+/logs message into a LogCache.
type LogListener struct {
	cache   *LogCache
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	started bool
}

func NewLogListener(cache *LogCache, log *logger.Logger, m *metrics.Metrics) *LogListener {
	return &LogListener{
		cache:   cache,
		log:     logger.OrNop(log),
		metrics: m,
		now:     time.Now,
	}
}

// Start subscribes to the log topic of every device. Only the first successful
// call subscribes.
func (l *LogListener) Start(b bus.Bus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	filter := devicesync.Topics{}.AllLogs()
	if err := b.Subscribe(filter, l.handle); err != nil {
		return err
	}
	l.started = true
	l.log.Infow("log_listener_started", "topic", filter)
	return nil
}

func (l *LogListener) handle(topic string, payload []byte) {
	var body models.LogBody
	if err := json.Unmarshal(payload, &body); err != nil {
		l.metrics.LogDropped(metrics.ReasonMalformed)
		l.log.Debugw("log_message_malformed", "topic", topic, "err", err)
		return
	}
	id := strings.TrimSpace(body.ID)
	if id == "" || body.Message == "" {
		l.metrics.LogDropped(metrics.ReasonMissingFields)
		l.log.Debugw("log_message_incomplete", "topic", topic, "has_id", id != "", "has_message", body.Message != "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	l.cache.Append(ctx, id, body.Message, l.now().UnixMilli())
	l.metrics.LogIngested()
}
