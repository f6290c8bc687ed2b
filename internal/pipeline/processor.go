// Package pipeline parses OCR text files and records each attempt as a
// parse job.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/drm"
	"github.com/joseph-ayodele/drmparse/internal/entity"
	"github.com/joseph-ayodele/drmparse/internal/parser"
	"github.com/joseph-ayodele/drmparse/internal/repository"
)

// ModelSource supplies the current model set in load order.
type ModelSource interface {
	Models() []*drm.Model
}

// StaticModels is a fixed model set.
type StaticModels []*drm.Model

func (s StaticModels) Models() []*drm.Model { return s }

// FileResult is the terminal state of one processed file.
type FileResult struct {
	JobID       uuid.UUID
	Path        string
	Status      constants.JobStatus
	Model       string
	Data        entity.ExtractedData
	DuplicateOf *uuid.UUID
}

// Processor reads an OCR text file, parses it and stores the outcome.
type Processor struct {
	logger   *slog.Logger
	models   ModelSource
	jobs     repository.ParseJobRepository
	maxBytes int64

	// serializes the duplicate lookup with the PARSED write
	dedupeMu sync.Mutex
}

func NewProcessor(logger *slog.Logger, models ModelSource, jobs repository.ParseJobRepository, maxBytes int64) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, models: models, jobs: jobs, maxBytes: maxBytes}
}

// ProcessFile runs the parser over the file at path and records the result.
// NO_MATCH, REJECTED and DUPLICATE are successful outcomes; the returned
// error is non-nil only when the job ends FAILED or cannot be recorded.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	content, readErr := p.readFile(path)
	sum := sha256.Sum256(content)

	job, err := p.jobs.Start(ctx, path, hex.EncodeToString(sum[:]))
	if err != nil {
		p.logger.Error("processor.job.start_failed", "path", path, "err", err)
		return nil, err
	}
	ctx = common.WithJobID(ctx, job.ID.String())
	logger := common.LoggerFromContext(ctx, p.logger).With("path", path)

	out := &FileResult{JobID: job.ID, Path: path, Data: entity.EmptyExtraction()}

	if readErr != nil {
		logger.Error("processor.read.failed", "err", readErr)
		return p.fail(ctx, out, readErr)
	}

	res, err := parser.New(logger).Parse(string(content), p.models.Models())
	if err != nil {
		return p.fail(ctx, out, err)
	}
	out.Model = res.ModelName()

	switch res.Outcome {
	case parser.OutcomeNoMatch:
		out.Status = constants.JobStatusNoMatch
		return out, p.jobs.FinishWithStatus(ctx, job.ID, out.Status, "", "no model matched")
	case parser.OutcomeRejected:
		out.Status = constants.JobStatusRejected
		msg := fmt.Sprintf("missing uniqueness fields %v", res.Model.UniquenessFields)
		return out, p.jobs.FinishWithStatus(ctx, job.ID, out.Status, out.Model, msg)
	}

	return p.finishExtracted(ctx, logger, out, res)
}

func (p *Processor) finishExtracted(ctx context.Context, logger *slog.Logger, out *FileResult, res *parser.Result) (*FileResult, error) {
	key := res.UniquenessKey()
	out.Data = res.Data

	p.dedupeMu.Lock()
	defer p.dedupeMu.Unlock()

	if key != "" {
		prior, err := p.jobs.FindParsedByUniquenessKey(ctx, key)
		switch {
		case err == nil:
			out.Status = constants.JobStatusDuplicate
			out.DuplicateOf = &prior.ID
			logger.Info("processor.duplicate", "duplicate_of", prior.ID, "model", out.Model)
			return out, p.jobs.FinishWithStatus(ctx, out.JobID, out.Status, out.Model, "duplicate of "+prior.ID.String())
		case !repository.IsNotFound(err):
			return p.fail(ctx, out, err)
		}
	}

	if err := p.jobs.FinishParsed(ctx, out.JobID, out.Model, res.Data, key); err != nil {
		return nil, err
	}
	out.Status = constants.JobStatusParsed
	return out, nil
}

func (p *Processor) fail(ctx context.Context, out *FileResult, cause error) (*FileResult, error) {
	out.Status = constants.JobStatusFailed
	out.Data = entity.EmptyExtraction()
	if err := p.jobs.FinishWithStatus(ctx, out.JobID, out.Status, out.Model, cause.Error()); err != nil {
		p.logger.Error("processor.job.finish_failed", "job_id", out.JobID, "err", err)
	}
	return out, cause
}

func (p *Processor) readFile(path string) ([]byte, error) {
	if p.maxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > p.maxBytes {
			return nil, common.NewAppError("FILE_TOO_LARGE",
				fmt.Sprintf("%s is %d bytes, limit is %d", path, info.Size(), p.maxBytes), common.ErrInvalidInput)
		}
	}
	return os.ReadFile(path)
}
