package pipeline

import (
	"rpanamer/internal"
	"rpanamer/internal/util"
)

const minNameLength = 5

// Classify marks a record successful when the receipt code and a plausible
// name were both found. Value and ID do not affect the status.
func Classify(fields internal.NormalizedFields) internal.ExtractionStatus {
	if fields.Code != CodeSentinel && fields.Name != NameSentinel && util.RuneLen(fields.Name) > minNameLength {
		return internal.StatusSuccess
	}
	return internal.StatusError
}
