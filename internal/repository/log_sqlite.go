package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"cat_feeder/internal/models"
)

const (
	selectLogsSQL = `
		SELECT device_id, time_ms, message
		FROM device_logs
		ORDER BY device_id ASC, position ASC
	`
	deleteLogsSQL = `DELETE FROM device_logs`
	insertLogSQL  = `
		INSERT INTO device_logs (device_id, position, time_ms, message)
		VALUES (?, ?, ?, ?)
	`
)

// LogSQLite keeps the log store in the device_logs table, one row per entry.
// position 0 is the newest entry of a device.
type LogSQLite struct {
	db *sql.DB
}

func NewLogSQLite(db *sql.DB) *LogSQLite { return &LogSQLite{db: db} }

// Load rebuilds the store from every row.
func (r *LogSQLite) Load(ctx context.Context) (models.LogStore, error) {
	rows, err := r.db.QueryContext(ctx, selectLogsSQL)
	if err != nil {
		return nil, fmt.Errorf("query device_logs: %w", err)
	}
	defer rows.Close()

	store := models.LogStore{}
	for rows.Next() {
		var (
			id string
			e  models.LogEntry
		)
		if err := rows.Scan(&id, &e.Time, &e.Message); err != nil {
			return nil, fmt.Errorf("scan device_logs: %w", err)
		}
		store[id] = append(store[id], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device_logs: %w", err)
	}
	return store, nil
}

// Save swaps the table contents for store in one transaction.
func (r *LogSQLite) Save(ctx context.Context, store models.LogStore) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin log transaction: %w", err)
	}
	defer func() {
		// no-op after commit
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, deleteLogsSQL); err != nil {
		return fmt.Errorf("clear device_logs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertLogSQL)
	if err != nil {
		return fmt.Errorf("prepare log insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(store))
	for id := range store {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for pos, e := range store[id] {
			if _, err := stmt.ExecContext(ctx, id, pos, e.Time, e.Message); err != nil {
				return fmt.Errorf("insert log %s/%d: %w", id, pos, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit log transaction: %w", err)
	}
	return nil
}
