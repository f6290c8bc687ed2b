package constants

import (
	"path/filepath"
	"strings"
)

// DRMExtensions holds the file extensions read as Document Regexp Models.
var DRMExtensions = map[string]struct{}{
	"yml":  {},
	"yaml": {},
}

// AllowedExtensions holds the default allowed file extensions for OCR text ingestion.
var AllowedExtensions = map[string]struct{}{
	"txt": {},
	"ocr": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext is an OCR text extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsDRMFile reports whether the file name carries a DRM extension.
func IsDRMFile(name string) bool {
	_, ok := DRMExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
