package drm

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/common"
)

// Parse decodes, validates and compiles a single DRM document.
// Documents failing the structural gate return an error wrapping
// ErrInvalidModel; broken regexes or type declarations return a DRM
// configuration error.
func Parse(name string, data []byte) (*Model, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidModel, name, err)
	}
	if err := Validate(generic); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.ConfigErrorf("%s: %v", name, err)
	}
	return compile(name, &doc)
}

// MustParse is like Parse but panics on error. Intended for tests and
// models embedded in code.
func MustParse(name, data string) *Model {
	m, err := Parse(name, []byte(data))
	if err != nil {
		panic(err)
	}
	return m
}

// Loader scans a directory of DRM files.
type Loader struct {
	fsys   fs.FS
	logger *slog.Logger
}

// NewLoader creates a loader over fsys (typically os.DirFS(dir)).
func NewLoader(fsys fs.FS, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fsys: fsys, logger: logger}
}

// LoadDir is a shorthand for NewLoader(os.DirFS(dir), logger).Load().
func LoadDir(dir string, logger *slog.Logger) ([]*Model, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "drm directory is required", common.ErrInvalidInput)
	}
	return NewLoader(os.DirFS(dir), logger).Load()
}

// Load reads every *.yml / *.yaml file at the root of the file system in
// lexical order, which is the tie-break order used when several models
// match the same text. Invalid documents are skipped with a warning; a
// configuration error in an otherwise valid DRM fails the whole load.
func (l *Loader) Load() ([]*Model, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read drm dir: %w", err)
	}

	var models []*Model
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || constants.IsHidden(name) || !constants.IsDRMFile(name) {
			continue
		}
		l.logger.Debug("reading drm file", "file", name)

		data, err := fs.ReadFile(l.fsys, name)
		if err != nil {
			l.logger.Warn("drm.load.read_failed", "file", name, "error", err)
			continue
		}

		m, err := Parse(strings.TrimSuffix(name, path.Ext(name)), data)
		if err != nil {
			if errors.Is(err, ErrInvalidModel) {
				l.logger.Warn("drm.load.skipped", "file", name, "error", err)
				continue
			}
			l.logger.Error("drm.load.config_error", "file", name, "error", err)
			return nil, err
		}
		models = append(models, m)
	}

	l.logger.Info("drm.load.ok", "models", len(models))
	return models, nil
}
