package pipeline

import (
	"regexp"
	"strings"

	"rpanamer/internal"
	"rpanamer/internal/util"
)

const (
	CodeSentinel  = "####"
	NameSentinel  = "NOME-NAO-ENCONTRADO"
	ValueSentinel = "0,00"
	IDSentinel    = "00000000000"

	IDLength      = 11
	NameMaxLength = 45
)

// NameContinuationMarkers start the metadata that OCR tends to glue onto a
// name; everything from the first marker on is dropped.
var NameContinuationMarkers = []string{"CPF", "RPA", "DATA", "VALOR", "CONTA", "ENDERE", "NASC", "SITU", "EMIT", "PAGO", "DOCUM", "RECIBO"}

var reContinuation = regexp.MustCompile(`(?i)` + alternation(NameContinuationMarkers))

func NormalizeFields(raw internal.ExtractedFields) internal.NormalizedFields {
	return internal.NormalizedFields{
		Code:  NormalizeCode(raw.Code),
		Name:  NormalizeName(raw.Name),
		Value: NormalizeValue(raw.Value),
		ID:    NormalizeID(raw.ID),
	}
}

func NormalizeCode(candidate *string) string {
	if candidate == nil {
		return CodeSentinel
	}
	code := strings.TrimSpace(*candidate)
	if code == "" {
		return CodeSentinel
	}
	return code
}

func NormalizeName(candidate *string) string {
	if candidate == nil {
		return NameSentinel
	}
	name := *candidate
	if loc := reContinuation.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	name = strings.TrimSpace(name)
	name = util.TruncateRunes(name, NameMaxLength)
	name = strings.TrimSpace(util.StripDigits(name))
	if name == "" {
		return NameSentinel
	}
	return name
}

func NormalizeValue(candidate *string) string {
	if candidate == nil {
		return ValueSentinel
	}
	value := strings.TrimSpace(*candidate)
	if value == "" {
		return ValueSentinel
	}
	return value
}

// NormalizeID keeps the digits of the candidate, truncated to the first 11.
func NormalizeID(candidate *string) string {
	if candidate == nil {
		return IDSentinel
	}
	digits := util.DigitsOnly(*candidate)
	if digits == "" {
		return IDSentinel
	}
	if len(digits) > IDLength {
		digits = digits[:IDLength]
	}
	return digits
}
