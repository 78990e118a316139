package signals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blockgoats/erm-sub000/internal/models"
)

var vagueTerm = regexp.MustCompile(`(?i)\b(reasonable|reasonably|timely|promptly|appropriate|appropriately|adequate|adequately|sufficient|material|materially|as soon as practicable|as soon as possible|best efforts|commercially reasonable|from time to time|substantially|where possible|where feasible|industry standard|regularly|periodically|if necessary|as needed)\b`)

// Ambiguities returns at most one Ambiguity grouping every vague term in text.
func Ambiguities(text string) []models.Ambiguity {
	matches := vagueTerm.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	terms := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			terms = append(terms, m)
		}
	}
	return []models.Ambiguity{{
		VagueTerms:     terms,
		Recommendation: fmt.Sprintf("Replace %s with measurable criteria (quantity, time limit or named standard).", quoteList(terms)),
	}}
}

func quoteList(terms []string) string {
	q := make([]string, len(terms))
	for i, t := range terms {
		q[i] = `"` + t + `"`
	}
	return strings.Join(q, ", ")
}
