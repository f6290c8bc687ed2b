package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// CheckUniqueness projects fields onto names. It reports false when any
// declared name is missing or empty, in which case the document is rejected.
// An empty names list accepts every document.
func CheckUniqueness(fields map[string]any, names []string) (map[string]any, bool) {
	out := make(map[string]any, len(names))
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == nil {
			return nil, false
		}
		if s, isStr := v.(string); isStr && s == "" {
			return nil, false
		}
		out[name] = v
	}
	return out, true
}

// UniquenessKey derives a stable identity for a document from its model
// name and uniqueness values. It returns "" when there are no values.
func UniquenessKey(model string, values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00", model)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%v\x00", name, values[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}
