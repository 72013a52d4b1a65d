package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cat_feeder/internal/models"

	"github.com/tidwall/jsonc"
)

// LogFile stores the log store as a single JSON object:
//
//	{"loki": [{"time": 1700000000000, "message": "fed"}]}
type LogFile struct {
	path string
}

func NewLogFile(path string) *LogFile { return &LogFile{path: path} }

// Load reads and parses the file. Comments and trailing commas are accepted so
// a hand-edited file still loads. A missing file returns an error wrapping
// os.ErrNotExist.
func (r *LogFile) Load(ctx context.Context) (models.LogStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read log file %q: %w", r.path, err)
	}
	var store models.LogStore
	if err := json.Unmarshal(jsonc.ToJSON(data), &store); err != nil {
		return nil, fmt.Errorf("parse log file %q: %w", r.path, err)
	}
	if store == nil {
		store = models.LogStore{}
	}
	return store, nil
}

// Save replaces the file atomically: write a temp file, fsync, rename over the
// target, then fsync the directory.
func (r *LogFile) Save(ctx context.Context, store models.LogStore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if store == nil {
		store = models.LogStore{}
	}
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("marshal log store: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %q: %w", dir, err)
	}

	temporaryPath := r.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary log file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("write temporary log file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("sync temporary log file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("close temporary log file: %w", err)
	}
	if err := os.Rename(temporaryPath, r.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("rename log file into place: %w", err)
	}

	if parent, err := os.Open(dir); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
