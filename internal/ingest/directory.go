package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/async"
)

// Enqueuer is implemented by *async.ProcessorQueue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

type DirStats struct {
	Scanned  uint32
	Matched  uint32
	Enqueued uint32
	Failed   uint32
}

// EnqueueDirectory walks root and enqueues every OCR text file it finds.
// Hidden files and directories are skipped when skipHidden is set. Walk
// errors on single entries are counted and do not stop the scan.
func EnqueueDirectory(ctx context.Context, q Enqueuer, root string, skipHidden bool, logger *slog.Logger) (DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return stats, errors.New("root path is required")
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			logger.Warn("ingest.walk.failed", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && constants.IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		if err := q.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("ingest.enqueue.failed", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		stats.Enqueued++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk: %w", err)
	}
	return stats, nil
}
