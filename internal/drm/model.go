// Package drm loads Document Regexp Models: YAML documents describing how to
// recognise a document type in OCR text and how to extract its fields and
// table rows with regular expressions.
//
// Models are compiled once at load time and are read-only afterwards, so a
// single model set can be shared by concurrent parses.
package drm

import (
	"fmt"
	"regexp"
)

// Model is a compiled Document Regexp Model.
type Model struct {
	Name             string
	Identifiers      []*regexp.Regexp
	Fields           []FieldPattern
	Table            *Table
	Options          *Options
	Types            Types
	UniquenessFields []string
}

// FieldPattern is a single named scalar extraction.
type FieldPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// Table describes the tabular section of a document.
// InlineNamedGroupCaptures is nil when rows carry no named groups.
type Table struct {
	Header                   *regexp.Regexp
	Footer                   *regexp.Regexp
	LineStart                *regexp.Regexp
	InlineNamedGroupCaptures *regexp.Regexp
}

// Options are the text transforms applied before extraction.
type Options struct {
	Lowercase        bool
	RemoveWhitespace bool
	ForceASCII       bool
	Replace          []Replacement
}

// Replacement is one ordered regex substitution. Template uses Go's
// regexp.Expand syntax (${1}, ${name}).
type Replacement struct {
	Pattern  *regexp.Regexp
	Template string
}

// Types holds the declared target types of fields and row groups.
type Types struct {
	Fields                   map[string]TypeSpec
	InlineNamedGroupCaptures map[string]TypeSpec
}

// Kind is the closed set of coercion targets.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt
	KindFloat
	KindStr
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindDateTime:
		return "datetime"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// TypeSpec is a resolved type declaration. Layout is a strftime format and
// is only meaningful for KindDateTime.
type TypeSpec struct {
	Kind   Kind
	Layout string
}

// Int, Float, Str and DateTime build TypeSpecs in code.
func Int() TypeSpec { return TypeSpec{Kind: KindInt} }
func Float() TypeSpec { return TypeSpec{Kind: KindFloat} }
func Str() TypeSpec { return TypeSpec{Kind: KindStr} }
func DateTime(layout string) TypeSpec { return TypeSpec{Kind: KindDateTime, Layout: layout} }

func (t TypeSpec) String() string {
	if t.Kind == KindDateTime {
		return fmt.Sprintf("datetime(%s)", t.Layout)
	}
	return t.Kind.String()
}

// HasTable reports whether the model declares a table section.
func (m *Model) HasTable() bool {
	return m != nil && m.Table != nil
}
