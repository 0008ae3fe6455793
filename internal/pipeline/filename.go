package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"rpanamer/internal"
)

const (
	DocumentExt    = ".pdf"
	fallbackPrefix = "00"
)

var reDisallowed = regexp.MustCompile(`[^\p{L}0-9_\s.,-]`)

// NameSet holds the output entry names (with extension) already committed
// in a batch.
type NameSet map[string]struct{}

func NewNameSet(names ...string) NameSet {
	s := NameSet{}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

func BaseName(prefix string, fields internal.NormalizedFields) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = fallbackPrefix
	}
	return fmt.Sprintf("%s_RPA %s_DIARISTA %s_%s_%s", p, fields.Code, fields.Name, fields.Value, fields.ID)
}

// SanitizeName removes every rune that is not a letter, digit, underscore,
// whitespace, period, comma or dash.
func SanitizeName(name string) string {
	return reDisallowed.ReplaceAllString(name, "")
}

// SynthesizeName returns the unique document name (without extension) for
// fields. existing is only read; the caller commits the result.
func SynthesizeName(prefix string, fields internal.NormalizedFields, existing NameSet) string {
	base := SanitizeName(BaseName(prefix, fields))
	final := base
	for n := 1; existing.Has(final + DocumentExt); n++ {
		final = fmt.Sprintf("%s_%d", base, n)
	}
	return final
}
