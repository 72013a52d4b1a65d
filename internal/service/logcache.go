package service

import (
	"context"
	"sync"

	"cat_feeder/internal/logger"
	"cat_feeder/internal/metrics"
	"cat_feeder/internal/models"
	"cat_feeder/internal/repository"
)

// LogCache keeps the newest log lines of every device in memory and mirrors
// the whole set to a repository after each append. Memory is authoritative: a
// failed write is logged and the next append tries again.
type LogCache struct {
	repo    repository.LogRepo
	max     int
	log     *logger.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	store models.LogStore
}

// NewLogCache keeps at most maxLen entries per device. maxLen < 1 is treated
// as 1.
func NewLogCache(repo repository.LogRepo, maxLen int, log *logger.Logger, m *metrics.Metrics) *LogCache {
	if maxLen < 1 {
		maxLen = 1
	}
	return &LogCache{
		repo:    repo,
		max:     maxLen,
		log:     logger.OrNop(log),
		metrics: m,
		store:   models.LogStore{},
	}
}

// Load replaces the in-memory store with the durable one. An unreadable store
// is reset to empty rather than failing startup. Lists longer than the
// configured maximum are trimmed.
func (c *LogCache) Load(ctx context.Context) models.LogStore {
	c.mu.Lock()
	defer c.mu.Unlock()

	store, err := c.repo.Load(ctx)
	if err != nil {
		c.log.Warnw("log_store_unreadable", "err", err)
		store = models.LogStore{}
		c.flushLocked(ctx, store)
	}
	for id, entries := range store {
		if len(entries) > c.max {
			store[id] = entries[:c.max]
		}
	}
	c.store = store
	c.log.Infow("log_store_loaded", "devices", len(store))
	return store.Clone()
}

// Append puts a new entry at the front of id's list, drops whatever falls past
// the maximum and writes the whole store.
func (c *LogCache) Append(ctx context.Context, id, message string, nowMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.store[id]
	n := len(prev) + 1
	if n > c.max {
		n = c.max
	}
	entries := make([]models.LogEntry, n)
	entries[0] = models.LogEntry{Time: nowMillis, Message: message}
	copy(entries[1:], prev)
	c.store[id] = entries

	c.flushLocked(ctx, c.store)
}

// Get returns a copy of id's entries, newest first. Unknown ids give an empty,
// non-nil slice.
func (c *LogCache) Get(id string) []models.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.LogEntry, len(c.store[id]))
	copy(out, c.store[id])
	return out
}

// Snapshot returns a copy of the whole store.
func (c *LogCache) Snapshot() models.LogStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Clone()
}

// Flush writes store to the repository. Errors are logged, not returned.
func (c *LogCache) Flush(ctx context.Context, store models.LogStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(ctx, store)
}

func (c *LogCache) flushLocked(ctx context.Context, store models.LogStore) {
	if err := c.repo.Save(ctx, store); err != nil {
		c.metrics.FlushFailed()
		c.log.Errorw("log_flush_failed", "devices", len(store), "err", err)
	}
}
