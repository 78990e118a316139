package signals

import (
	"regexp"
	"strings"

	"github.com/blockgoats/erm-sub000/internal/models"
)

var (
	conditionalDependency = regexp.MustCompile(`(?i)\b(subject to|in accordance with|pursuant to|as set forth in|as described in|as defined in|conditional upon|contingent upon|upon|unless)\s+(.+?)(?:[,;]|\.\s|\.$|$)`)
	sectionReference      = regexp.MustCompile(`(?i)\b(section|clause|article|schedule|appendix|annex|exhibit)\s+(\d+(?:\.\d+)*(?:\([a-z0-9]+\))?|[A-Z]\b)`)
)

const maxDependsOnRunes = 120

// Dependencies finds conditional phrases and references to other sections.
func Dependencies(text string) []models.Dependency {
	var out []models.Dependency
	seen := make(map[string]bool)
	add := func(d models.Dependency) {
		key := strings.ToLower(d.DependsOn)
		if d.DependsOn == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, d)
	}

	for _, m := range conditionalDependency.FindAllStringSubmatch(text, -1) {
		add(models.Dependency{
			DependsOn: truncateRunes(strings.TrimSpace(m[2]), maxDependsOnRunes),
			Condition: strings.ToLower(m[1]),
		})
	}
	for _, m := range sectionReference.FindAllStringSubmatch(text, -1) {
		add(models.Dependency{
			DependsOn: strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:]) + " " + m[2],
			Condition: "cross-reference",
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
