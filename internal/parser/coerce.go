package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/drm"
	"github.com/joseph-ayodele/drmparse/internal/entity"
)

// ErrCast is wrapped by every value that fails to convert to its declared type.
var ErrCast = errors.New("cast failed")

var (
	intPattern   = regexp.MustCompile(`^[+-]?[0-9]+(?:_[0-9]+)*$`)
	floatPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:_[0-9]+)*(?:\.(?:[0-9]+(?:_[0-9]+)*)?)?|\.[0-9]+(?:_[0-9]+)*)(?:[eE][+-]?[0-9]+(?:_[0-9]+)*)?$`)
)

const isoLayout = "2006-01-02T15:04:05"

// Cast converts value to the type described by spec. Conversion failures
// wrap ErrCast; a spec with an unknown kind is a configuration error.
func Cast(value string, spec drm.TypeSpec) (any, error) {
	switch spec.Kind {
	case drm.KindInt:
		return castInt(value)
	case drm.KindFloat:
		return castFloat(value)
	case drm.KindStr:
		return value, nil
	case drm.KindDateTime:
		return castDateTime(value, spec.Layout)
	default:
		return nil, common.ConfigErrorf("unsupported type %s", spec)
	}
}

func castInt(value string) (any, error) {
	s := strings.TrimSpace(value)
	if !intPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not an int", ErrCast, value)
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCast, value, err)
	}
	return n, nil
}

func castFloat(value string) (any, error) {
	s := strings.TrimSpace(value)
	if !floatPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a float", ErrCast, value)
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: %q is not a finite float", ErrCast, value)
	}
	return f, nil
}

func castDateTime(value, layout string) (any, error) {
	if layout == "" {
		return nil, common.ConfigErrorf("datetime type without a format")
	}
	t, err := strftime.Parse(layout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q does not match %q: %v", ErrCast, value, layout, err)
	}
	return FormatISO(t, hasZone(layout)), nil
}

func hasZone(layout string) bool {
	return strings.Contains(layout, "%z") || strings.Contains(layout, "%Z")
}

// FormatISO renders t as YYYY-MM-DDTHH:MM:SS, adding microseconds when
// they are non-zero and the UTC offset when withZone is set.
func FormatISO(t time.Time, withZone bool) string {
	out := t.Format(isoLayout)
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	if withZone {
		out += t.Format("-07:00")
	}
	return out
}

// ApplyTypes returns a typed copy of data. Fields use types.Fields and row
// data uses types.InlineNamedGroupCaptures. Absent or empty values are left
// alone, converted values replace the raw string, and values that fail to
// convert are removed. The input is never modified.
func ApplyTypes(data entity.ExtractedData, types drm.Types, logger *slog.Logger) (entity.ExtractedData, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := checkSpecs(types.Fields); err != nil {
		return entity.ExtractedData{}, err
	}
	if err := checkSpecs(types.InlineNamedGroupCaptures); err != nil {
		return entity.ExtractedData{}, err
	}

	out := data.Clone()
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	if err := typeSection(out.Fields, types.Fields, logger); err != nil {
		return entity.ExtractedData{}, err
	}
	if out.Table != nil && len(types.InlineNamedGroupCaptures) > 0 {
		for i := range out.Table.Rows {
			if err := typeSection(out.Table.Rows[i].Data, types.InlineNamedGroupCaptures, logger); err != nil {
				return entity.ExtractedData{}, err
			}
		}
	}
	return out, nil
}

func checkSpecs(specs map[string]drm.TypeSpec) error {
	for name, spec := range specs {
		switch spec.Kind {
		case drm.KindInt, drm.KindFloat, drm.KindStr:
		case drm.KindDateTime:
			if spec.Layout == "" {
				return common.ConfigErrorf("type for %q: datetime without a format", name)
			}
		default:
			return common.ConfigErrorf("type for %q: unsupported type %s", name, spec)
		}
	}
	return nil
}

func typeSection(section map[string]any, specs map[string]drm.TypeSpec, logger *slog.Logger) error {
	if section == nil {
		return nil
	}
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw, ok := section[name].(string)
		if !ok || raw == "" {
			continue
		}
		v, err := Cast(raw, specs[name])
		if err != nil {
			if !errors.Is(err, ErrCast) {
				return err
			}
			logger.Debug("parser.cast.failed", "name", name, "type", specs[name].String(), "error", err)
			delete(section, name)
			continue
		}
		section[name] = v
	}
	return nil
}
