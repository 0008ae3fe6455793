package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"rpanamer/internal"
	"rpanamer/internal/util"
)

func TestResolveNameLongestRun(t *testing.T) {
	name, ok := ResolveName("pagamento a ANA LIMA e tambem a MARIA APARECIDA DOS SANTOS hoje")
	assert.True(t, ok)
	assert.Equal(t, "MARIA APARECIDA DOS SANTOS", name)
}

func TestResolveNameTieKeepsFirst(t *testing.T) {
	name, ok := ResolveName("JOAO DIAS e LUIS REIS")
	assert.True(t, ok)
	assert.Equal(t, "JOAO DIAS", name)
}

func TestResolveNameBlacklist(t *testing.T) {
	for _, token := range NameBlacklist {
		assert.Empty(t, NameCandidates("XXX "+token+" YYY"), token)
	}

	name, ok := ResolveName("VALOR TOTAL PAGO para PEDRO ALVES")
	assert.True(t, ok)
	assert.Equal(t, "PEDRO ALVES", name)

	_, ok = ResolveName("nada em maiusculas AB CD")
	assert.False(t, ok)
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"MARIA DA SILVA CPF 123":   "MARIA DA SILVA",
		"  JOSE SOUZA DATA 10/10 ": "JOSE SOUZA",
		"ANA 2 PAULA":              "ANA  PAULA",
		"CPF":                      NameSentinel,
		"   ":                      NameSentinel,
		"JOSÉ ÂNGELO RECIBO":       "JOSÉ ÂNGELO",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(&in), in)
	}
	assert.Equal(t, NameSentinel, NormalizeName(nil))
}

func TestNormalizeNameTruncates(t *testing.T) {
	long := strings.Repeat("ÁBCDE ", 12)
	got := NormalizeName(&long)
	assert.LessOrEqual(t, util.RuneLen(got), NameMaxLength)
	assert.Equal(t, strings.TrimSpace(util.TruncateRunes(long, NameMaxLength)), got)
}

func TestNormalizeMarkersMatchAnyCase(t *testing.T) {
	for _, marker := range NameContinuationMarkers {
		in := "FULANO DE TAL " + strings.ToLower(marker) + " resto"
		assert.Equal(t, "FULANO DE TAL", NormalizeName(&in), marker)
	}
}

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"123.456.789-01": "12345678901",
		"1234567890123":  "12345678901",
		"123 456":        "123456",
		"...-":           IDSentinel,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeID(&in), in)
	}
	assert.Equal(t, IDSentinel, NormalizeID(nil))
}

func TestNormalizeCodeAndValue(t *testing.T) {
	code, value := " 1234 ", "1.500,00"
	got := NormalizeFields(internal.ExtractedFields{Code: &code, Value: &value})
	assert.Equal(t, internal.NormalizedFields{Code: "1234", Name: NameSentinel, Value: "1.500,00", ID: IDSentinel}, got)
	assert.Equal(t, ValueSentinel, NormalizeFields(internal.ExtractedFields{}).Value)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		fields internal.NormalizedFields
		want   internal.ExtractionStatus
	}{
		{internal.NormalizedFields{Code: "1234", Name: "MARIA SOUZA"}, internal.StatusSuccess},
		{internal.NormalizedFields{Code: "1234", Name: "ABCDEF"}, internal.StatusSuccess},
		{internal.NormalizedFields{Code: "1234", Name: "ABCDE"}, internal.StatusError},
		{internal.NormalizedFields{Code: CodeSentinel, Name: "MARIA SOUZA"}, internal.StatusError},
		{internal.NormalizedFields{Code: "1234", Name: NameSentinel}, internal.StatusError},
		{internal.NormalizedFields{Code: "1234", Name: "ÂNGELA", Value: ValueSentinel, ID: IDSentinel}, internal.StatusSuccess},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.fields), "%+v", tc.fields)
	}
}
