package repository

import (
	"context"
	"database/sql"

	"cat_feeder/internal/models"
)

// LogRepo persists the whole log store. Save always overwrites everything
// previously stored.
type LogRepo interface {
	Load(ctx context.Context) (models.LogStore, error)
	Save(ctx context.Context, store models.LogStore) error
}

type Repository struct {
	Logs LogRepo
}

// NewFileRepository keeps logs in the JSON file at path.
func NewFileRepository(path string) *Repository {
	return &Repository{Logs: NewLogFile(path)}
}

// NewSQLiteRepository keeps logs in the device_logs table of db.
func NewSQLiteRepository(db *sql.DB) *Repository {
	return &Repository{Logs: NewLogSQLite(db)}
}
