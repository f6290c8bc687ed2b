package parser

import "github.com/joseph-ayodele/drmparse/internal/drm"

// HasMatch reports whether every identifier of m is found in text.
// A model without identifiers never matches.
func HasMatch(text string, m *drm.Model) bool {
	if m == nil || len(m.Identifiers) == 0 {
		return false
	}
	for _, id := range m.Identifiers {
		if !id.MatchString(text) {
			return false
		}
	}
	return true
}

// FindMatches returns the models whose identifiers all match text, in input order.
func FindMatches(text string, models []*drm.Model) []*drm.Model {
	matches := make([]*drm.Model, 0, 1)
	for _, m := range models {
		if HasMatch(text, m) {
			matches = append(matches, m)
		}
	}
	return matches
}
