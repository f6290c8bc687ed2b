package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/entity"
)

var parseJobColumns = []string{
	"id",
	"source_path",
	"content_hash",
	"status",
	"model_name",
	"extracted_json",
	"uniqueness_key",
	"error_message",
	"started_at",
	"finished_at",
}

// ListFilter narrows ParseJobRepository.List. Zero values match everything.
type ListFilter struct {
	Status constants.JobStatus
	Limit  int
}

type ParseJobRepository interface {
	Start(ctx context.Context, sourcePath, contentHash string) (*entity.ParseJob, error)
	FinishParsed(ctx context.Context, jobID uuid.UUID, modelName string, data entity.ExtractedData, uniquenessKey string) error
	FinishWithStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, modelName, message string) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ParseJob, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.ParseJob, error)
	FindParsedByUniquenessKey(ctx context.Context, key string) (*entity.ParseJob, error)
}

type parseJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewParseJobRepository(db *DB, log *slog.Logger) ParseJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &parseJobRepo{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *parseJobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *parseJobRepo) Start(ctx context.Context, sourcePath, contentHash string) (*entity.ParseJob, error) {
	job := &entity.ParseJob{
		ID:          uuid.New(),
		SourcePath:  sourcePath,
		ContentHash: contentHash,
		Status:      string(constants.JobStatusRunning),
		StartedAt:   r.now(),
	}
	query, args := r.builder().Insert(parseJobsTable).
		Columns("id", "source_path", "content_hash", "status", "started_at").
		Values(job.ID.String(), job.SourcePath, job.ContentHash, job.Status, formatTime(job.StartedAt)).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("parse_job start failed", "source_path", sourcePath, "err", err)
		return nil, fmt.Errorf("%w: start parse job: %v", common.ErrDatabase, err)
	}
	r.log.Debug("parse_job started", "job_id", job.ID, "source_path", sourcePath)
	return job, nil
}

func (r *parseJobRepo) FinishParsed(ctx context.Context, jobID uuid.UUID, modelName string, data entity.ExtractedData, uniquenessKey string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode extraction: %w", err)
	}
	upd := r.builder().Update(parseJobsTable).
		Set("status", string(constants.JobStatusParsed)).
		Set("model_name", modelName).
		Set("extracted_json", string(payload)).
		Set("finished_at", formatTime(r.now()))
	if uniquenessKey != "" {
		upd.Set("uniqueness_key", uniquenessKey)
	}
	query, args := upd.Where(entsql.EQ("id", jobID.String())).Query()
	if err := r.exec(ctx, jobID, query, args); err != nil {
		r.log.Error("parse_job finish(PARSED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("parse_job finished (PARSED)", "job_id", jobID, "model", modelName)
	return nil
}

func (r *parseJobRepo) FinishWithStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, modelName, message string) error {
	if !status.IsTerminal() || !constants.IsValidJobStatus(string(status)) {
		return common.NewAppError("INVALID_STATUS", fmt.Sprintf("%q is not a terminal job status", status), common.ErrInvalidInput)
	}
	upd := r.builder().Update(parseJobsTable).
		Set("status", string(status)).
		Set("finished_at", formatTime(r.now()))
	if modelName != "" {
		upd.Set("model_name", modelName)
	}
	if message != "" {
		upd.Set("error_message", message)
	}
	query, args := upd.Where(entsql.EQ("id", jobID.String())).Query()
	if err := r.exec(ctx, jobID, query, args); err != nil {
		r.log.Error("parse_job finish failed", "job_id", jobID, "status", status, "err", err)
		return err
	}
	if status == constants.JobStatusFailed {
		r.log.Warn("parse_job finished (FAILED)", "job_id", jobID, "error", message)
	} else {
		r.log.Info("parse_job finished", "job_id", jobID, "status", status)
	}
	return nil
}

func (r *parseJobRepo) exec(ctx context.Context, jobID uuid.UUID, query string, args []any) error {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("parse job %s: %w", jobID, common.ErrNotFound)
	}
	return nil
}

func (r *parseJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ParseJob, error) {
	jobs, err := r.query(ctx, r.selectJobs().Where(entsql.EQ("id", jobID.String())))
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("parse job %s: %w", jobID, common.ErrNotFound)
	}
	return jobs[0], nil
}

func (r *parseJobRepo) List(ctx context.Context, filter ListFilter) ([]*entity.ParseJob, error) {
	sel := r.selectJobs().OrderBy("started_at", "source_path")
	if filter.Status != "" {
		sel.Where(entsql.EQ("status", string(filter.Status)))
	}
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}
	return r.query(ctx, sel)
}

func (r *parseJobRepo) FindParsedByUniquenessKey(ctx context.Context, key string) (*entity.ParseJob, error) {
	sel := r.selectJobs().
		Where(entsql.And(
			entsql.EQ("uniqueness_key", key),
			entsql.EQ("status", string(constants.JobStatusParsed)),
		)).
		OrderBy("started_at").
		Limit(1)
	jobs, err := r.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("uniqueness key %s: %w", key, common.ErrNotFound)
	}
	return jobs[0], nil
}

func (r *parseJobRepo) selectJobs() *entsql.Selector {
	return r.builder().Select(parseJobColumns...).From(r.builder().Table(parseJobsTable))
}

func (r *parseJobRepo) query(ctx context.Context, sel *entsql.Selector) ([]*entity.ParseJob, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var jobs []*entity.ParseJob
	for rows.Next() {
		job, err := scanParseJob(&rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return jobs, nil
}

func scanParseJob(rows *entsql.Rows) (*entity.ParseJob, error) {
	var (
		id, sourcePath, hash, status, startedAt       string
		model, extracted, uniqKey, errMsg, finishedAt sql.NullString
	)
	if err := rows.Scan(&id, &sourcePath, &hash, &status, &model, &extracted, &uniqKey, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, fmt.Errorf("%w: scan parse job: %v", common.ErrDatabase, err)
	}

	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: parse job id %q: %v", common.ErrDatabase, id, err)
	}
	started, err := parseTime(startedAt)
	if err != nil {
		return nil, err
	}

	job := &entity.ParseJob{
		ID:            jobID,
		SourcePath:    sourcePath,
		ContentHash:   hash,
		Status:        status,
		ModelName:     nullable(model),
		UniquenessKey: nullable(uniqKey),
		ErrorMessage:  nullable(errMsg),
		StartedAt:     started,
	}
	if extracted.Valid && extracted.String != "" {
		job.ExtractedJSON = json.RawMessage(extracted.String)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		job.FinishedAt = &t
	}
	return job, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", common.ErrDatabase, s, err)
	}
	return t, nil
}

// IsNotFound reports whether err means the job or key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
