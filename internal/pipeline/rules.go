package pipeline

import (
	"regexp"
	"strings"
)

type Field string

const (
	FieldCode  Field = "code"
	FieldName  Field = "name"
	FieldValue Field = "value"
	FieldID    Field = "id"
)

// PatternRule captures one candidate from normalized text. Group 0 takes the
// whole match.
type PatternRule struct {
	Name    string
	Pattern *regexp.Regexp
	Group   int
}

func (r PatternRule) Find(text string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(text)
	if m == nil || r.Group >= len(m) || m[r.Group] == "" {
		return "", false
	}
	return m[r.Group], true
}

// FieldRules is the ordered rule list of one field; the first rule that
// captures something wins.
type FieldRules struct {
	Field Field
	Rules []PatternRule
}

// Match returns the captured candidate and the name of the rule that found it.
func (f FieldRules) Match(text string) (candidate string, rule string, ok bool) {
	for _, r := range f.Rules {
		if v, found := r.Find(text); found {
			return v, r.Name, true
		}
	}
	return "", "", false
}

var (
	ValueLabels = []string{"Total", "Liquido", "Líquido", "Recebi", "Recebido", "Pago", "Valor"}
	NameLabels  = []string{"Nome", "Diarista", "Beneficiário", "Prestador"}
)

var CodeRules = FieldRules{
	Field: FieldCode,
	Rules: []PatternRule{
		{Name: "rpa-label", Pattern: regexp.MustCompile(`(?i)RPA\s*[:.-]?\s*(\d{4,6})`), Group: 1},
		{Name: "code-before-year", Pattern: regexp.MustCompile(`(\d{4,6})\s*2[0-9]{3}`), Group: 1},
	},
}

var ValueRules = FieldRules{
	Field: FieldValue,
	Rules: []PatternRule{
		{
			Name:    "value-label",
			Pattern: regexp.MustCompile(`(?i)(?:` + alternation(ValueLabels) + `)\s*(?:[a-zÀ-ú\s]{0,20})?\s*[:.-]?\s*R?\$\s*([\d.,]{4,15})`),
			Group:   1,
		},
		{Name: "currency", Pattern: regexp.MustCompile(`(?i)R\$\s*([\d.,]{4,15})`), Group: 1},
	},
}

var NameLabelRules = FieldRules{
	Field: FieldName,
	Rules: []PatternRule{
		{
			Name:    "name-label",
			Pattern: regexp.MustCompile(`(?i)(?:` + alternation(NameLabels) + `)\s*[:.-]?\s*([A-ZÀ-Ú\s]{5,70})`),
			Group:   1,
		},
	},
}

var IDRules = FieldRules{
	Field: FieldID,
	Rules: []PatternRule{
		{Name: "cpf-label", Pattern: regexp.MustCompile(`(?i)(?:CPF|N[o°º] do CPF)\s*(?:n[o°º]|n|:)?\s*([\d.\-\s]{11,18})`), Group: 1},
		{Name: "cpf-formatted", Pattern: regexp.MustCompile(`\d{3}[\s.]\d{3}[\s.]\d{3}[-\s.]\d{1,2}`), Group: 0},
		{Name: "cpf-bare", Pattern: regexp.MustCompile(`\d{11}`), Group: 0},
	},
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	return strings.Join(quoted, "|")
}
