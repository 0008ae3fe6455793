package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var reSpaces = regexp.MustCompile(`[\s\v\p{Zs}]+`)

// CollapseSpaces replaces every run of whitespace with a single space.
// Leading and trailing runs become a single space too; nothing is trimmed.
func CollapseSpaces(input string) string {
	return reSpaces.ReplaceAllString(input, " ")
}

// DigitsOnly drops every rune that is not an ASCII digit.
func DigitsOnly(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripDigits drops every Unicode decimal digit.
func StripDigits(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, input)
}

// TruncateRunes keeps at most max runes of input.
func TruncateRunes(input string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(input) <= max {
		return input
	}
	runes := []rune(input)
	return string(runes[:max])
}

func RuneLen(input string) int {
	return utf8.RuneCountInString(input)
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

var fileComponentReplacer = strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")

// SafeFileComponent makes input usable as part of a file name.
func SafeFileComponent(input string) string {
	out := fileComponentReplacer.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
