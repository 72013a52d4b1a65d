package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cat_feeder/internal/metrics"
	"cat_feeder/internal/models"
	"cat_feeder/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLogRepo is an in-memory repository.LogRepo.
type memLogRepo struct {
	mu      sync.Mutex
	stored  models.LogStore
	loadErr error
	saveErr error
	saves   int
}

func (r *memLogRepo) Load(context.Context) (models.LogStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.stored == nil {
		return models.LogStore{}, nil
	}
	return r.stored.Clone(), nil
}

func (r *memLogRepo) Save(_ context.Context, s models.LogStore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.stored = s.Clone()
	return nil
}

func (r *memLogRepo) snapshot() models.LogStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored.Clone()
}

var _ repository.LogRepo = (*memLogRepo)(nil)

func TestLogCache_FirstAppend(t *testing.T) {
	repo := &memLogRepo{}
	cache := NewLogCache(repo, 10, nil, nil)
	cache.Load(context.Background())

	cache.Append(context.Background(), "loki", "fed", 100)

	assert.Equal(t, []models.LogEntry{{Time: 100, Message: "fed"}}, cache.Get("loki"))
	assert.Equal(t, []models.LogEntry{{Time: 100, Message: "fed"}}, repo.snapshot()["loki"])
}

func TestLogCache_KeepsNewestUpToMax(t *testing.T) {
	repo := &memLogRepo{}
	cache := NewLogCache(repo, 10, nil, nil)
	cache.Load(context.Background())

	cache.Append(context.Background(), "loki", "fed", 100)
	for i := 1; i <= 11; i++ {
		cache.Append(context.Background(), "loki", fmt.Sprintf("msg %d", i), int64(100+i))
	}

	got := cache.Get("loki")
	require.Len(t, got, 10)
	for i, e := range got {
		assert.Equal(t, int64(111-i), e.Time, "entry %d", i)
	}
	assert.Equal(t, "msg 11", got[0].Message)
	assert.Equal(t, "msg 2", got[9].Message)
	assert.Len(t, repo.snapshot()["loki"], 10)
}

func TestLogCache_GetUnknownIsEmptyNotNil(t *testing.T) {
	cache := NewLogCache(&memLogRepo{}, 10, nil, nil)
	got := cache.Get("nobody")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLogCache_GetReturnsCopy(t *testing.T) {
	cache := NewLogCache(&memLogRepo{}, 10, nil, nil)
	cache.Append(context.Background(), "loki", "fed", 1)

	got := cache.Get("loki")
	got[0].Message = "changed"
	assert.Equal(t, "fed", cache.Get("loki")[0].Message)
}

func TestLogCache_DevicesAreIndependent(t *testing.T) {
	cache := NewLogCache(&memLogRepo{}, 2, nil, nil)
	cache.Append(context.Background(), "loki", "a", 1)
	cache.Append(context.Background(), "gatito", "b", 2)
	cache.Append(context.Background(), "loki", "c", 3)
	cache.Append(context.Background(), "loki", "d", 4)

	assert.Equal(t, []models.LogEntry{{Time: 4, Message: "d"}, {Time: 3, Message: "c"}}, cache.Get("loki"))
	assert.Equal(t, []models.LogEntry{{Time: 2, Message: "b"}}, cache.Get("gatito"))
}

func TestLogCache_LoadUnreadableResetsStore(t *testing.T) {
	repo := &memLogRepo{loadErr: errors.New("unexpected end of JSON input")}
	cache := NewLogCache(repo, 10, nil, nil)

	got := cache.Load(context.Background())
	assert.Empty(t, got)
	assert.Equal(t, 1, repo.saves, "store rewritten as empty")
	assert.NotNil(t, repo.snapshot())
	assert.Empty(t, repo.snapshot())
}

func TestLogCache_LoadTrimsToMax(t *testing.T) {
	repo := &memLogRepo{stored: models.LogStore{"loki": {
		{Time: 3, Message: "c"}, {Time: 2, Message: "b"}, {Time: 1, Message: "a"},
	}}}
	cache := NewLogCache(repo, 2, nil, nil)

	got := cache.Load(context.Background())
	assert.Len(t, got["loki"], 2)
	assert.Equal(t, "c", cache.Get("loki")[0].Message)
}

func TestLogCache_LoadIsIdempotent(t *testing.T) {
	repo := &memLogRepo{stored: models.LogStore{"loki": {{Time: 1, Message: "a"}}}}
	cache := NewLogCache(repo, 10, nil, nil)

	first := cache.Load(context.Background())
	second := cache.Load(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, 0, repo.saves)
}

func TestLogCache_FlushFailureKeepsMemory(t *testing.T) {
	m := metrics.New()
	repo := &memLogRepo{saveErr: errors.New("read-only file system")}
	cache := NewLogCache(repo, 10, nil, m)

	assert.NotPanics(t, func() {
		cache.Append(context.Background(), "loki", "fed", 100)
	})
	assert.Len(t, cache.Get("loki"), 1)
	expected := `
# HELP feeder_hub_logs_flush_failures_total Failed writes of the log store to durable storage.
# TYPE feeder_hub_logs_flush_failures_total counter
feeder_hub_logs_flush_failures_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"feeder_hub_logs_flush_failures_total"))
}

func TestLogCache_ConcurrentAppendsKeepBound(t *testing.T) {
	repo := &memLogRepo{}
	cache := NewLogCache(repo, 10, nil, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cache.Append(context.Background(), "loki", fmt.Sprintf("%d-%d", g, i), int64(g*1000+i))
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, cache.Get("loki"), 10)
	assert.Len(t, repo.snapshot()["loki"], 10)
	assert.Equal(t, 400, repo.saves)
}

func TestLogCache_WithFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.json")
	repo := repository.NewLogFile(path)

	cache := NewLogCache(repo, 10, nil, nil)
	assert.Empty(t, cache.Load(context.Background()), "missing file loads as empty")
	cache.Append(context.Background(), "loki", "fed", 100)

	reopened := NewLogCache(repository.NewLogFile(path), 10, nil, nil)
	got := reopened.Load(context.Background())
	assert.Equal(t, []models.LogEntry{{Time: 100, Message: "fed"}}, got["loki"])
}
