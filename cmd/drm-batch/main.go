package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/async"
	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/export"
	"github.com/joseph-ayodele/drmparse/internal/ingest"
	"github.com/joseph-ayodele/drmparse/internal/pipeline"
	repo "github.com/joseph-ayodele/drmparse/internal/repository"
	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// summary counts finished jobs per status.
type summary struct {
	mu       sync.Mutex
	byStatus map[constants.JobStatus]int
	failures int
}

func (s *summary) record(_ async.Job, res *pipeline.FileResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		return
	}
	s.byStatus[res.Status]++
}

func main() {
	cfg := common.LoadConfig()

	var (
		dir    = flag.String("dir", "", "directory of OCR text files to process (required)")
		drmDir = flag.String("drms", cfg.DRM.Dir, "directory of DRM files")
		out    = flag.String("out", "", "output XLSX file path (optional, defaults to EXPORT_DIR or the parent of --dir)")
		watch  = flag.Bool("watch", false, "keep running and process new files as they appear")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	cfg.DRM.Dir = *drmDir
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		exportDir := cfg.Export.Dir
		if exportDir == "" {
			exportDir = filepath.Dir(filepath.Clean(*dir))
		}
		*out = filepath.Join(exportDir, "drmparse.xlsx")
	}

	logger := common.NewLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	models, err := parsing.NewService(*drmDir, cfg.Server.MaxTextBytes, logger)
	if err != nil {
		logger.Error("failed to load DRMs", "dir", *drmDir, "error", err)
		os.Exit(1)
	}

	jobsRepo := repo.NewParseJobRepository(db, logger)
	processor := pipeline.NewProcessor(logger, models, jobsRepo, int64(cfg.Server.MaxTextBytes))

	sum := &summary{byStatus: map[constants.JobStatus]int{}}
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.Timeout),
		async.WithResultFunc(sum.record),
	)

	start := time.Now()
	logger.Info("starting ingestion", "dir", *dir, "models", len(models.Models()))
	stats, err := ingest.EnqueueDirectory(ctx, queue, *dir, true, logger)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
	}
	logger.Info("scan complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"enqueued", stats.Enqueued,
		"failed", stats.Failed)

	if *watch {
		watchDirectory(ctx, queue, *dir, logger)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+cfg.Batch.Timeout)
	queue.Shutdown(drainCtx)
	cancel()

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := export.NewService(jobsRepo, logger).ExportJobsXLSX(context.Background())
	if err != nil {
		logger.Error("failed to export jobs", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	sum.mu.Lock()
	defer sum.mu.Unlock()
	logger.Info("batch processing complete",
		"files_enqueued", stats.Enqueued,
		"failures", sum.failures,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files enqueued: %d\n", stats.Enqueued)
	for _, st := range []constants.JobStatus{
		constants.JobStatusParsed,
		constants.JobStatusNoMatch,
		constants.JobStatusRejected,
		constants.JobStatusDuplicate,
		constants.JobStatusFailed,
	} {
		fmt.Printf("- %s: %d\n", st, sum.byStatus[st])
	}
	fmt.Printf("- Errors: %d\n", sum.failures)
	fmt.Printf("- Output: %s\n", *out)
}

// watchDirectory enqueues new or rewritten OCR files until ctx is done.
func watchDirectory(ctx context.Context, queue *async.ProcessorQueue, dir string, logger *slog.Logger) {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots: []string{dir},
		Match: func(p string) bool {
			return constants.IsAllowedExt(filepath.Ext(p)) && !constants.IsHidden(p)
		},
		Debounce: 500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		return
	}
	logger.Info("watching for new files", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-events:
			if !ok {
				return
			}
			if _, err := os.Stat(p); err != nil {
				continue // removed or renamed away
			}
			if err := queue.Enqueue(ctx, async.Job{Path: p}); err != nil {
				logger.Warn("failed to enqueue watched file", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok {
				logger.Warn("watcher error", "error", err)
			}
		}
	}
}
