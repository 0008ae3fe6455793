package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reBRThousands = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?$`)
	reUSThousands = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?$`)
	reDecimal     = regexp.MustCompile(`^\d+(?:[.,]\d{1,2})?$`)
)

// ParseAmount converts a monetary token such as "1.500,00" into a number.
// Receipts are Brazilian, so a lone comma is the decimal separator.
func ParseAmount(token string) (float64, bool) {
	compact := strings.TrimSpace(strings.ReplaceAll(token, " ", ""))
	compact = strings.Trim(compact, ".,")
	if compact == "" {
		return 0, false
	}

	var norm string
	switch {
	case reBRThousands.MatchString(compact):
		norm = strings.ReplaceAll(compact, ".", "")
		norm = strings.ReplaceAll(norm, ",", ".")
	case reUSThousands.MatchString(compact):
		norm = strings.ReplaceAll(compact, ",", "")
	case reDecimal.MatchString(compact):
		norm = strings.ReplaceAll(compact, ",", ".")
	default:
		return 0, false
	}

	parsed, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
