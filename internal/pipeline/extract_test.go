package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpanamer/internal"
)

func TestExtractLabeledReceipt(t *testing.T) {
	ext := Extract("RPA: 1234 ... Nome: MARIA DA SILVA SOUZA ... R$ 1.500,00 ... CPF 123.456.789-01")

	want := internal.NormalizedFields{Code: "1234", Name: "MARIA DA SILVA SOUZA", Value: "1.500,00", ID: "12345678901"}
	assert.Equal(t, want, ext.Fields)
	assert.Equal(t, internal.StatusSuccess, ext.Status)
	assert.Equal(t, map[Field]string{
		FieldCode:  "rpa-label",
		FieldName:  "name-label",
		FieldValue: "currency",
		FieldID:    "cpf-label",
	}, ext.Rules)
}

func TestExtractNameHeuristic(t *testing.T) {
	ext := Extract("documento emitido em 10/05 JOSE PEREIRA LIMA assinatura do responsavel")
	assert.Equal(t, "JOSE PEREIRA LIMA", ext.Fields.Name)
	assert.Equal(t, ruleNameHeuristic, ext.Rules[FieldName])
	// no receipt code, so the record is still an error
	assert.Equal(t, internal.StatusError, ext.Status)
}

func TestExtractEmptyTextYieldsSentinels(t *testing.T) {
	ext := Extract("")
	want := internal.NormalizedFields{Code: CodeSentinel, Name: NameSentinel, Value: ValueSentinel, ID: IDSentinel}
	assert.Equal(t, want, ext.Fields)
	assert.Equal(t, internal.StatusError, ext.Status)
	assert.Empty(t, ext.Rules)
}

func TestExtractLongCPFTruncated(t *testing.T) {
	cases := []struct {
		text string
		rule string
	}{
		{"CPF: 1234567890123", "cpf-label"},
		{"inscricao 1234567890123", "cpf-bare"},
	}
	for _, tc := range cases {
		ext := Extract(tc.text)
		assert.Equal(t, "12345678901", ext.Fields.ID, tc.text)
		assert.Equal(t, tc.rule, ext.Rules[FieldID], tc.text)
	}
}

func TestExtractCollapsesWhitespace(t *testing.T) {
	ext := Extract("RPA:\n\n 4321\t2024\r\nDiarista:   ANA PAULA COSTA CPF 111.222.333-44")
	assert.Equal(t, "RPA: 4321 2024 Diarista: ANA PAULA COSTA CPF 111.222.333-44", ext.Normalized)
	assert.Equal(t, "4321", ext.Fields.Code)
	assert.Equal(t, "ANA PAULA COSTA", ext.Fields.Name)
	assert.Equal(t, "11122233344", ext.Fields.ID)
}

func TestExtractLabeledNameSkipsHeuristic(t *testing.T) {
	// the labeled capture is only a marker, which normalizes away
	ext := Extract("Nome: CPF 12345678901 CARLOS ALBERTO NUNES")
	assert.Equal(t, "name-label", ext.Rules[FieldName])
	assert.Equal(t, NameSentinel, ext.Fields.Name)
}

func TestExtractFieldsIndependent(t *testing.T) {
	fields, _ := ExtractFields("Valor pago: R$ 250,00")
	assert.Nil(t, fields.Code)
	assert.Nil(t, fields.ID)
	require.NotNil(t, fields.Value)
	assert.Equal(t, "250,00", *fields.Value)
}
