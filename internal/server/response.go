package server

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/drmparse/internal/entity"
	"github.com/joseph-ayodele/drmparse/internal/parser"
)

// ParseResponse is the wire form of a parse result shared by HTTP and gRPC.
type ParseResponse struct {
	Outcome       string               `json:"outcome"`
	Model         string               `json:"model,omitempty"`
	Data          entity.ExtractedData `json:"data"`
	Uniqueness    map[string]any       `json:"uniqueness,omitempty"`
	UniquenessKey string               `json:"uniqueness_key,omitempty"`
}

func newParseResponse(res *parser.Result) ParseResponse {
	return ParseResponse{
		Outcome:       string(res.Outcome),
		Model:         res.ModelName(),
		Data:          res.Data,
		Uniqueness:    res.Uniqueness,
		UniquenessKey: res.UniquenessKey(),
	}
}

// toMap converts v to the generic JSON shape accepted by structpb.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
