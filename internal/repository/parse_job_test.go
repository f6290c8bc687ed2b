package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/entity"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := "file:" + filepath.Join(t.TempDir(), "jobs.db")
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: dsn}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func newTestRepo(t *testing.T) *parseJobRepo {
	t.Helper()
	repo := NewParseJobRepository(newTestDB(t), slog.New(slog.NewTextHandler(io.Discard, nil))).(*parseJobRepo)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := db.HealthCheck(context.Background(), time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestParseJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.Start(ctx, "in/a.txt", "hash-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != string(constants.JobStatusRunning) {
		t.Errorf("status = %s", job.Status)
	}

	data := entity.ExtractedData{
		Fields: map[string]any{"total": int64(42)},
		Table: &entity.TableData{
			Header: "h", AllRows: "\nA1", Footer: "f",
			Rows: []entity.RowResult{{Row: "A1", Data: map[string]any{"qty": int64(1)}}},
		},
	}
	if err := repo.FinishParsed(ctx, job.ID, "receipt", data, "key-1"); err != nil {
		t.Fatalf("FinishParsed: %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != string(constants.JobStatusParsed) || got.SourcePath != "in/a.txt" || got.ContentHash != "hash-a" {
		t.Errorf("job = %+v", got)
	}
	if got.ModelName == nil || *got.ModelName != "receipt" {
		t.Errorf("model = %v", got.ModelName)
	}
	if got.UniquenessKey == nil || *got.UniquenessKey != "key-1" {
		t.Errorf("uniqueness key = %v", got.UniquenessKey)
	}
	if got.ErrorMessage != nil {
		t.Errorf("error message = %q", *got.ErrorMessage)
	}
	if got.FinishedAt == nil || !got.FinishedAt.After(got.StartedAt) {
		t.Errorf("started %v finished %v", got.StartedAt, got.FinishedAt)
	}

	stored, err := got.Extraction()
	if err != nil {
		t.Fatalf("Extraction: %v", err)
	}
	if stored.Fields["total"] != float64(42) {
		t.Errorf("stored total = %#v", stored.Fields["total"])
	}
	if stored.Table == nil || len(stored.Table.Rows) != 1 || stored.Table.Rows[0].Row != "A1" {
		t.Errorf("stored table = %+v", stored.Table)
	}
}

func TestFinishWithStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.Start(ctx, "b.txt", "hash-b")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := repo.FinishWithStatus(ctx, job.ID, constants.JobStatusFailed, "", "read failed"); err != nil {
		t.Fatalf("FinishWithStatus: %v", err)
	}
	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != string(constants.JobStatusFailed) || got.ErrorMessage == nil || *got.ErrorMessage != "read failed" {
		t.Errorf("job = %+v", got)
	}
	if got.ModelName != nil {
		t.Errorf("model = %q, want nil", *got.ModelName)
	}

	if err := repo.FinishWithStatus(ctx, job.ID, constants.JobStatusRunning, "", ""); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("non-terminal status err = %v", err)
	}
	if err := repo.FinishWithStatus(ctx, uuid.New(), constants.JobStatusNoMatch, "", ""); !IsNotFound(err) {
		t.Errorf("unknown job err = %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetByID(context.Background(), uuid.New()); !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListAndFindByUniquenessKey(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, _ := repo.Start(ctx, "1.txt", "h1")
	second, _ := repo.Start(ctx, "2.txt", "h2")
	third, _ := repo.Start(ctx, "3.txt", "h3")

	empty := entity.EmptyExtraction()
	if err := repo.FinishParsed(ctx, first.ID, "m", empty, "dup"); err != nil {
		t.Fatalf("FinishParsed: %v", err)
	}
	if err := repo.FinishWithStatus(ctx, second.ID, constants.JobStatusDuplicate, "m", "duplicate of "+first.ID.String()); err != nil {
		t.Fatalf("FinishWithStatus: %v", err)
	}
	if err := repo.FinishWithStatus(ctx, third.ID, constants.JobStatusNoMatch, "", ""); err != nil {
		t.Fatalf("FinishWithStatus: %v", err)
	}

	all, err := repo.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != first.ID || all[2].ID != third.ID {
		t.Errorf("List order wrong: %v", all)
	}

	parsed, err := repo.List(ctx, ListFilter{Status: constants.JobStatusParsed})
	if err != nil {
		t.Fatalf("List parsed: %v", err)
	}
	if len(parsed) != 1 || parsed[0].ID != first.ID {
		t.Errorf("parsed = %v", parsed)
	}

	limited, err := repo.List(ctx, ListFilter{Limit: 2})
	if err != nil || len(limited) != 2 {
		t.Errorf("limited = %d, err = %v", len(limited), err)
	}

	found, err := repo.FindParsedByUniquenessKey(ctx, "dup")
	if err != nil {
		t.Fatalf("FindParsedByUniquenessKey: %v", err)
	}
	if found.ID != first.ID {
		t.Errorf("found %s, want %s", found.ID, first.ID)
	}
	if _, err := repo.FindParsedByUniquenessKey(ctx, "missing"); !IsNotFound(err) {
		t.Errorf("missing key err = %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "file:a.db", want: "file:a.db?_pragma=foreign_keys(1)"},
		{in: "file:a.db?_pragma=busy_timeout(5000)", want: "file:a.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{in: "file:a.db?_pragma=foreign_keys(1)", want: "file:a.db?_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.in); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
