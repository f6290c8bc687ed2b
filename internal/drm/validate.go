package drm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidModel marks documents that are not DRMs at all: unparsable YAML,
// or missing the required identifiers/fields keys. Loaders skip them.
var ErrInvalidModel = errors.New("invalid drm")

// modelSchema is the structural gate every DRM document must pass: a
// non-empty identifiers list and a fields key (which may be empty).
const modelSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["identifiers", "fields"],
  "properties": {
    "identifiers": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "fields": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    }
  }
}`

var compiledModelSchema = jsonschema.MustCompileString("drm.schema.json", modelSchema)

// Validate checks a generically decoded DRM document against the model schema.
func Validate(doc any) error {
	// Round-trip through JSON so YAML scalars take their JSON shapes.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrInvalidModel, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: decode document: %v", ErrInvalidModel, err)
	}
	if err := compiledModelSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return nil
}
