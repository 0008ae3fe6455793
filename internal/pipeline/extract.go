package pipeline

import (
	"rpanamer/internal"
	"rpanamer/internal/util"
)

const ruleNameHeuristic = "name-heuristic"

// Extraction is the full per-document result of the text pipeline.
type Extraction struct {
	RawText    string                    `json:"rawText"`
	Normalized string                    `json:"normalizedText"`
	Candidates internal.ExtractedFields  `json:"-"`
	Rules      map[Field]string          `json:"rules"`
	Fields     internal.NormalizedFields `json:"fields"`
	Status     internal.ExtractionStatus `json:"status"`
}

// Extract runs normalization, matching, field normalization and
// classification over the OCR text of one document.
func Extract(rawText string) Extraction {
	normalized := util.CollapseSpaces(rawText)
	candidates, rules := ExtractFields(normalized)
	fields := NormalizeFields(candidates)
	return Extraction{
		RawText:    rawText,
		Normalized: normalized,
		Candidates: candidates,
		Rules:      rules,
		Fields:     fields,
		Status:     Classify(fields),
	}
}

// ExtractFields applies the field rules to normalized text. The name
// heuristic only runs when no labeled name was found.
func ExtractFields(normalized string) (internal.ExtractedFields, map[Field]string) {
	var out internal.ExtractedFields
	rules := map[Field]string{}

	match := func(fr FieldRules) *string {
		v, rule, ok := fr.Match(normalized)
		if !ok {
			return nil
		}
		rules[fr.Field] = rule
		return &v
	}

	out.Code = match(CodeRules)
	out.Value = match(ValueRules)
	out.Name = match(NameLabelRules)
	if out.Name == nil {
		if name, ok := ResolveName(normalized); ok {
			out.Name = &name
			rules[FieldName] = ruleNameHeuristic
		}
	}
	out.ID = match(IDRules)

	return out, rules
}
