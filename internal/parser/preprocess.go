package parser

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/drmparse/internal/drm"
)

// Preprocess applies the model options to text in a fixed order:
// lowercase, whitespace removal, ASCII transliteration, then the ordered
// replacements. Replace patterns may rely on the earlier steps.
func Preprocess(text string, opts *drm.Options) string {
	if opts == nil {
		return text
	}
	out := text
	if opts.Lowercase {
		out = strings.ToLower(out)
	}
	if opts.RemoveWhitespace {
		out = removeWhitespace(out)
	}
	if opts.ForceASCII {
		out = ToASCII(out)
	}
	for _, r := range opts.Replace {
		out = r.Pattern.ReplaceAllString(out, r.Template)
	}
	return out
}

func removeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ToASCII transliterates text to its closest ASCII form using the
// Unidecode tables: ç -> c, ß -> ss, ½ -> 1/2, × -> x, and non-Latin
// scripts are romanized. Input is composed first so decomposed accents
// map like their precomposed forms.
func ToASCII(s string) string {
	return unidecode.Unidecode(norm.NFC.String(s))
}
