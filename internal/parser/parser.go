// Package parser turns OCR text into structured data using a set of
// compiled document regexp models.
//
// A call runs the stages in order: match, pre-process, extract, type,
// uniqueness. The first model in load order whose identifiers all match is
// used; the rest are ignored.
package parser

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/drmparse/internal/drm"
	"github.com/joseph-ayodele/drmparse/internal/entity"
)

// Outcome tells how a parse ended.
type Outcome string

const (
	OutcomeExtracted Outcome = "extracted"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeRejected  Outcome = "rejected"
)

// Result is the outcome of parsing one text. Data is empty unless Outcome
// is OutcomeExtracted.
type Result struct {
	Outcome    Outcome
	Model      *drm.Model
	Data       entity.ExtractedData
	Uniqueness map[string]any
}

// ModelName returns the name of the model used, or "" when nothing matched.
func (r *Result) ModelName() string {
	if r == nil || r.Model == nil {
		return ""
	}
	return r.Model.Name
}

// UniquenessKey returns the duplicate detection key of an extracted result.
func (r *Result) UniquenessKey() string {
	if r == nil || r.Outcome != OutcomeExtracted {
		return ""
	}
	return UniquenessKey(r.ModelName(), r.Uniqueness)
}

// Parser runs the extraction pipeline. It holds no per-call state and is
// safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse selects the first matching model and extracts data from text with it.
// No match and a failed uniqueness gate are normal outcomes with a nil
// error; only configuration errors are returned.
func (p *Parser) Parse(text string, models []*drm.Model) (*Result, error) {
	matches := FindMatches(text, models)
	if len(matches) == 0 {
		p.logger.Info("parser.match.none", "models", len(models))
		return &Result{Outcome: OutcomeNoMatch, Data: entity.EmptyExtraction()}, nil
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		p.logger.Debug("parser.match.multiple", "models", names)
	}
	return p.Apply(text, matches[0])
}

// Apply runs every stage after matching with the given model.
func (p *Parser) Apply(text string, m *drm.Model) (*Result, error) {
	logger := p.logger.With("model", m.Name)
	logger.Debug("parser.match.ok")

	prepared := Preprocess(text, m.Options)
	raw := Extract(prepared, m)

	typed, err := ApplyTypes(raw, m.Types, logger)
	if err != nil {
		logger.Error("parser.types.failed", "err", err)
		return nil, fmt.Errorf("model %s: %w", m.Name, err)
	}

	uniq, ok := CheckUniqueness(typed.Fields, m.UniquenessFields)
	if !ok {
		logger.Info("parser.uniqueness.rejected", "uniqueness_fields", m.UniquenessFields)
		return &Result{Outcome: OutcomeRejected, Model: m, Data: entity.EmptyExtraction()}, nil
	}

	rows := 0
	if typed.Table != nil {
		rows = len(typed.Table.Rows)
	}
	logger.Info("parser.extract.ok", "fields", len(typed.Fields), "rows", rows)
	return &Result{Outcome: OutcomeExtracted, Model: m, Data: typed, Uniqueness: uniq}, nil
}

// Parse runs the pipeline with the default logger and returns only the
// extracted data. It is empty when nothing matched or the document was
// rejected.
func Parse(text string, models []*drm.Model) (entity.ExtractedData, error) {
	res, err := New(nil).Parse(text, models)
	if err != nil {
		return entity.ExtractedData{}, err
	}
	return res.Data, nil
}
