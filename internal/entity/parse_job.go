package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ParseJob represents a parse job for data transfer between layers.
type ParseJob struct {
	ID            uuid.UUID       `json:"id"`
	SourcePath    string          `json:"source_path"`
	ContentHash   string          `json:"content_hash"`
	Status        string          `json:"status"`
	ModelName     *string         `json:"model_name,omitempty"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
	UniquenessKey *string         `json:"uniqueness_key,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

// Extraction decodes the stored extraction, or returns an empty one.
func (j *ParseJob) Extraction() (ExtractedData, error) {
	if len(j.ExtractedJSON) == 0 {
		return EmptyExtraction(), nil
	}
	var d ExtractedData
	if err := json.Unmarshal(j.ExtractedJSON, &d); err != nil {
		return ExtractedData{}, err
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	return d, nil
}
