package pipeline

import (
	"regexp"
	"strings"

	"rpanamer/internal/util"
)

// NameBlacklist lists document-noise tokens; an uppercase run containing any
// of them is not a person's name.
var NameBlacklist = []string{"RPA", "CPF", "RECIBO", "VALOR", "DATA", "NASCIMENTO"}

// 2 to 6 uppercase words of at least 3 letters each.
var reUpperRun = regexp.MustCompile(`[A-ZÀ-Ú]{3,}(?:\s[A-ZÀ-Ú]{3,}){1,5}`)

var reBlacklist = regexp.MustCompile(`(?i)` + alternation(NameBlacklist))

// ResolveName picks the longest uppercase run that is not blacklisted.
// On ties the first run wins. It reports false when nothing qualifies.
func ResolveName(text string) (string, bool) {
	best := ""
	bestLen := 0
	for _, run := range NameCandidates(text) {
		if n := util.RuneLen(run); n > bestLen {
			best, bestLen = run, n
		}
	}
	return best, best != ""
}

// NameCandidates returns the non-blacklisted runs in scan order.
func NameCandidates(text string) []string {
	runs := reUpperRun.FindAllString(text, -1)
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		if reBlacklist.MatchString(run) || strings.TrimSpace(run) == "" {
			continue
		}
		out = append(out, run)
	}
	return out
}
