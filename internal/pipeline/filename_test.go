package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rpanamer/internal"
)

var mariaFields = internal.NormalizedFields{Code: "1234", Name: "MARIA DA SILVA", Value: "1.500,00", ID: "12345678901"}

func TestBaseNameLayout(t *testing.T) {
	assert.Equal(t, "07_RPA 1234_DIARISTA MARIA DA SILVA_1.500,00_12345678901", BaseName("07", mariaFields))
	assert.Equal(t, "00_RPA 1234_DIARISTA MARIA DA SILVA_1.500,00_12345678901", BaseName("  ", mariaFields))
}

func TestSynthesizeNameSanitizes(t *testing.T) {
	fields := internal.NormalizedFields{Code: CodeSentinel, Name: NameSentinel, Value: ValueSentinel, ID: IDSentinel}
	assert.Equal(t, "AB_RPA _DIARISTA NOME-NAO-ENCONTRADO_0,00_00000000000", SynthesizeName("A/B", fields, NewNameSet()))

	accented := internal.NormalizedFields{Code: "1", Name: "JOSÉ ÂNGELO", Value: "1,00", ID: "1"}
	assert.Equal(t, "X_RPA 1_DIARISTA JOSÉ ÂNGELO_1,00_1", SynthesizeName("X", accented, NewNameSet()))
}

func TestSynthesizeNameCollisions(t *testing.T) {
	used := NewNameSet()
	base := SanitizeName(BaseName("07", mariaFields))

	first := SynthesizeName("07", mariaFields, used)
	assert.Equal(t, base, first)
	used.Add(first + DocumentExt)

	second := SynthesizeName("07", mariaFields, used)
	assert.Equal(t, base+"_1", second)
	used.Add(second + DocumentExt)

	assert.Equal(t, base+"_2", SynthesizeName("07", mariaFields, used))
}

func TestSynthesizeNameDoesNotMutateSet(t *testing.T) {
	used := NewNameSet("other.pdf")
	_ = SynthesizeName("07", mariaFields, used)
	assert.Len(t, used, 1)
}
