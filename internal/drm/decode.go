package drm

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/drmparse/internal/common"
)

// document mirrors the YAML layout of a DRM file.
type document struct {
	Identifiers      []string          `yaml:"identifiers"`
	Fields           map[string]string `yaml:"fields"`
	Table            *tableDoc         `yaml:"table"`
	Options          *optionsDoc       `yaml:"options"`
	Types            *typesDoc         `yaml:"types"`
	UniquenessFields []string          `yaml:"uniqueness_fields"`
}

type tableDoc struct {
	Header                   string `yaml:"header"`
	Footer                   string `yaml:"footer"`
	LineStart                string `yaml:"line_start"`
	InlineNamedGroupCaptures string `yaml:"inline_named_group_captures"`
}

type optionsDoc struct {
	Lowercase        bool       `yaml:"lowercase"`
	RemoveWhitespace bool       `yaml:"remove_whitespace"`
	ForceASCII       bool       `yaml:"force_ascii"`
	Replace          [][]string `yaml:"replace"`
}

type typesDoc struct {
	Fields map[string]TypeSpec `yaml:"fields"`
	Table  struct {
		InlineNamedGroupCaptures map[string]TypeSpec `yaml:"inline_named_group_captures"`
	} `yaml:"table"`
}

// UnmarshalYAML accepts "int", "float", "str" or ["datetime", "<strftime format>"].
func (t *TypeSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		switch value.Value {
		case "int":
			*t = Int()
		case "float":
			*t = Float()
		case "str":
			*t = Str()
		default:
			return fmt.Errorf("line %d: unknown type %q", value.Line, value.Value)
		}
		return nil
	case yaml.SequenceNode:
		items := value.Content
		if len(items) != 2 || items[0].Kind != yaml.ScalarNode || items[1].Kind != yaml.ScalarNode || items[0].Value != "datetime" {
			return fmt.Errorf("line %d: type list must be [\"datetime\", \"<format>\"]", value.Line)
		}
		*t = DateTime(items[1].Value)
		return nil
	}
	return fmt.Errorf("line %d: unsupported type declaration", value.Line)
}

// compile turns a decoded document into a Model. Every error is a DRM
// configuration error naming the offending key.
func compile(name string, doc *document) (*Model, error) {
	m := &Model{
		Name:             name,
		UniquenessFields: doc.UniquenessFields,
		Types: Types{
			Fields:                   map[string]TypeSpec{},
			InlineNamedGroupCaptures: map[string]TypeSpec{},
		},
	}

	for i, src := range doc.Identifiers {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, common.ConfigErrorf("%s: identifiers[%d]: %v", name, i, err)
		}
		m.Identifiers = append(m.Identifiers, re)
	}

	names := make([]string, 0, len(doc.Fields))
	for field := range doc.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	for _, field := range names {
		re, err := regexp.Compile(doc.Fields[field])
		if err != nil {
			return nil, common.ConfigErrorf("%s: fields.%s: %v", name, field, err)
		}
		m.Fields = append(m.Fields, FieldPattern{Name: field, Pattern: re})
	}

	if doc.Table != nil {
		t, err := compileTable(name, doc.Table)
		if err != nil {
			return nil, err
		}
		m.Table = t
	}

	if doc.Options != nil {
		o, err := compileOptions(name, doc.Options)
		if err != nil {
			return nil, err
		}
		m.Options = o
	}

	if doc.Types != nil {
		for k, v := range doc.Types.Fields {
			m.Types.Fields[k] = v
		}
		for k, v := range doc.Types.Table.InlineNamedGroupCaptures {
			m.Types.InlineNamedGroupCaptures[k] = v
		}
	}

	for i, field := range m.UniquenessFields {
		if strings.TrimSpace(field) == "" {
			return nil, common.ConfigErrorf("%s: uniqueness_fields[%d] is empty", name, i)
		}
	}
	return m, nil
}

func compileTable(name string, doc *tableDoc) (*Table, error) {
	var err error
	t := &Table{}
	if t.Header, err = compileRequired(name, "table.header", doc.Header); err != nil {
		return nil, err
	}
	if t.Footer, err = compileRequired(name, "table.footer", doc.Footer); err != nil {
		return nil, err
	}
	if t.LineStart, err = compileRequired(name, "table.line_start", doc.LineStart); err != nil {
		return nil, err
	}
	if doc.InlineNamedGroupCaptures != "" {
		re, err := regexp.Compile(doc.InlineNamedGroupCaptures)
		if err != nil {
			return nil, common.ConfigErrorf("%s: table.inline_named_group_captures: %v", name, err)
		}
		t.InlineNamedGroupCaptures = re
	}
	return t, nil
}

func compileRequired(name, key, src string) (*regexp.Regexp, error) {
	if src == "" {
		return nil, common.ConfigErrorf("%s: %s is required", name, key)
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, common.ConfigErrorf("%s: %s: %v", name, key, err)
	}
	return re, nil
}

func compileOptions(name string, doc *optionsDoc) (*Options, error) {
	o := &Options{
		Lowercase:        doc.Lowercase,
		RemoveWhitespace: doc.RemoveWhitespace,
		ForceASCII:       doc.ForceASCII,
	}
	for i, pair := range doc.Replace {
		if len(pair) != 2 {
			return nil, common.ConfigErrorf("%s: options.replace[%d] must be a [pattern, replacement] pair", name, i)
		}
		re, err := regexp.Compile(pair[0])
		if err != nil {
			return nil, common.ConfigErrorf("%s: options.replace[%d]: %v", name, i, err)
		}
		tmpl, refs := convertTemplate(pair[1])
		if err := checkGroupRefs(re, refs); err != nil {
			return nil, common.ConfigErrorf("%s: options.replace[%d]: %v", name, i, err)
		}
		o.Replace = append(o.Replace, Replacement{Pattern: re, Template: tmpl})
	}
	return o, nil
}

// ConvertTemplate rewrites a DRM replacement string into Go's Expand syntax.
// DRM files use backslash references: \1 and \g<name> (or \g<1>). \\, \n and
// \t are unescaped, and a literal $ is escaped as $$.
func ConvertTemplate(s string) string {
	out, _ := convertTemplate(s)
	return out
}

// convertTemplate also returns the group references found, in order.
func convertTemplate(s string) (string, []string) {
	var refs []string
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			b.WriteString("$$")
			continue
		}
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch {
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			refs = append(refs, s[i+1:j])
			b.WriteString("${" + s[i+1:j] + "}")
			i = j - 1
		case next == 'g' && i+2 < len(s) && s[i+2] == '<':
			end := strings.IndexByte(s[i+3:], '>')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			refs = append(refs, s[i+3:i+3+end])
			b.WriteString("${" + s[i+3:i+3+end] + "}")
			i = i + 3 + end
		case next == '\\':
			b.WriteByte('\\')
			i++
		case next == 'n':
			b.WriteByte('\n')
			i++
		case next == 't':
			b.WriteByte('\t')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), refs
}

// checkGroupRefs rejects references to groups re does not define, which
// Expand would otherwise replace with an empty string.
func checkGroupRefs(re *regexp.Regexp, refs []string) error {
	for _, ref := range refs {
		if n, err := strconv.Atoi(ref); err == nil {
			if n < 0 || n > re.NumSubexp() {
				return fmt.Errorf("invalid group reference %d: pattern has %d groups", n, re.NumSubexp())
			}
			continue
		}
		if ref == "" || re.SubexpIndex(ref) < 0 {
			return fmt.Errorf("unknown group name %q", ref)
		}
	}
	return nil
}
