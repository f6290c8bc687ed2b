package export

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/entity"
	"github.com/joseph-ayodele/drmparse/internal/repository"
)

const (
	SheetDocuments = "Documents"
	SheetRows      = "Rows"
	SheetJobs      = "Jobs"
)

// Service produces XLSX workbooks from stored parse jobs.
type Service struct {
	jobs   repository.ParseJobRepository
	logger *slog.Logger
}

func NewService(jobs repository.ParseJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX returns a workbook (as bytes) with three sheets:
// Documents has one row per parsed job and one column per field name,
// Rows has one row per table row with its named groups, and Jobs lists
// every job with its status.
func (s *Service) ExportJobsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	all, err := s.jobs.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, common.WrapError(err, "query parse jobs")
	}

	var docs []document
	for _, j := range all {
		if j.Status != string(constants.JobStatusParsed) {
			continue
		}
		data, err := j.Extraction()
		if err != nil {
			s.logger.Warn("export.job.undecodable", "job_id", j.ID, "err", err)
			continue
		}
		docs = append(docs, document{job: j, data: data})
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetDocuments); err != nil {
		return nil, err
	}
	for _, sheet := range []string{SheetRows, SheetJobs} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetDocuments)
	f.SetActiveSheet(activeIndex)

	writeDocuments(f, docs)
	rows := writeRows(f, docs)
	writeJobs(f, all)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, common.WrapError(err, "xlsx write")
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(all),
		"documents", len(docs),
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type document struct {
	job  *entity.ParseJob
	data entity.ExtractedData
}

func writeDocuments(f *excelize.File, docs []document) {
	names := map[string]struct{}{}
	for _, d := range docs {
		for k := range d.data.Fields {
			names[k] = struct{}{}
		}
	}
	fields := sortedKeys(names)

	headers := append([]string{"Source Path", "Model", "Finished At"}, fields...)
	writeRow(f, SheetDocuments, 1, toAny(headers))

	for i, d := range docs {
		values := []any{d.job.SourcePath, deref(d.job.ModelName), formatTime(d.job.FinishedAt)}
		for _, name := range fields {
			values = append(values, d.data.Fields[name])
		}
		writeRow(f, SheetDocuments, i+2, values)
	}

	_ = f.SetColWidth(SheetDocuments, "A", "A", 48) // path
	_ = f.SetColWidth(SheetDocuments, "B", "B", 20) // model
	_ = f.SetColWidth(SheetDocuments, "C", "C", 22) // finished
}

func writeRows(f *excelize.File, docs []document) int {
	names := map[string]struct{}{}
	for _, d := range docs {
		if d.data.Table == nil {
			continue
		}
		for _, r := range d.data.Table.Rows {
			for k := range r.Data {
				names[k] = struct{}{}
			}
		}
	}
	groups := sortedKeys(names)

	headers := append([]string{"Source Path", "Model", "Row #", "Row"}, groups...)
	writeRow(f, SheetRows, 1, toAny(headers))

	row := 2
	for _, d := range docs {
		if d.data.Table == nil {
			continue
		}
		for i, r := range d.data.Table.Rows {
			values := []any{d.job.SourcePath, deref(d.job.ModelName), i + 1, r.Row}
			for _, name := range groups {
				values = append(values, r.Data[name])
			}
			writeRow(f, SheetRows, row, values)
			row++
		}
	}

	_ = f.SetColWidth(SheetRows, "A", "A", 48) // path
	_ = f.SetColWidth(SheetRows, "D", "D", 60) // row text
	return row - 2
}

func writeJobs(f *excelize.File, jobs []*entity.ParseJob) {
	headers := []any{"Job ID", "Source Path", "Status", "Model", "Error", "Started At", "Finished At"}
	writeRow(f, SheetJobs, 1, headers)
	for i, j := range jobs {
		writeRow(f, SheetJobs, i+2, []any{
			j.ID.String(),
			j.SourcePath,
			j.Status,
			deref(j.ModelName),
			truncate(deref(j.ErrorMessage), 140),
			formatTime(&j.StartedAt),
			formatTime(j.FinishedAt),
		})
	}
	_ = f.SetColWidth(SheetJobs, "A", "A", 38) // id
	_ = f.SetColWidth(SheetJobs, "B", "B", 48) // path
	_ = f.SetColWidth(SheetJobs, "E", "E", 48) // error
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
