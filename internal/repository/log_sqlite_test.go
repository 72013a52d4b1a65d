package repository

import (
	"errors"
	"regexp"
	"testing"

	"cat_feeder/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLogSQLite_Load(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"device_id", "time_ms", "message"}).
		AddRow("gatito", int64(30), "Boot").
		AddRow("loki", int64(20), "Feeding done").
		AddRow("loki", int64(10), "Feeding start")
	mock.ExpectQuery(regexp.QuoteMeta(selectLogsSQL)).WillReturnRows(rows)

	store, err := NewLogSQLite(db).Load(ctx(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(store["loki"]) != 2 || store["loki"][0].Message != "Feeding done" {
		t.Fatalf("unexpected loki logs: %+v", store["loki"])
	}
	if len(store["gatito"]) != 1 || store["gatito"][0].Time != 30 {
		t.Fatalf("unexpected gatito logs: %+v", store["gatito"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestLogSQLite_LoadEmpty(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectLogsSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"device_id", "time_ms", "message"}))

	store, err := NewLogSQLite(db).Load(ctx(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store == nil || len(store) != 0 {
		t.Fatalf("want empty store, got %#v", store)
	}
}

func TestLogSQLite_LoadQueryError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectLogsSQL)).WillReturnError(errors.New("disk I/O error"))

	if _, err := NewLogSQLite(db).Load(ctx(t)); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogSQLite_Save(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteLogsSQL)).WillReturnResult(sqlmock.NewResult(0, 4))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(insertLogSQL))
	// ids are written in sorted order
	prep.ExpectExec().WithArgs("gatito", 0, int64(30), "Boot").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("loki", 0, int64(20), "Feeding done").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("loki", 1, int64(10), "Feeding start").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewLogSQLite(db).Save(ctx(t), models.LogStore{
		"loki":   {{Time: 20, Message: "Feeding done"}, {Time: 10, Message: "Feeding start"}},
		"gatito": {{Time: 30, Message: "Boot"}},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestLogSQLite_SaveInsertErrorRollsBack(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteLogsSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(regexp.QuoteMeta(insertLogSQL)).
		ExpectExec().WithArgs("loki", 0, int64(1), "x").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err = NewLogSQLite(db).Save(ctx(t), models.LogStore{"loki": {{Time: 1, Message: "x"}}})
	if err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestLogSQLite_SaveBeginError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	if err := NewLogSQLite(db).Save(ctx(t), models.LogStore{}); err == nil {
		t.Fatal("expected error")
	}
}
