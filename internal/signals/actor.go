package signals

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/blockgoats/erm-sub000/internal/models"
)

var (
	modalVerb = regexp.MustCompile(`(?i)\b(shall|must|will|is required to|are required to|agrees to|agree to|is responsible for|are responsible for|undertakes to)\s+(not\s+)?`)

	knownRoles = map[string]bool{
		"vendor": true, "vendors": true, "supplier": true, "suppliers": true,
		"contractor": true, "subcontractor": true, "customer": true, "client": true,
		"provider": true, "controller": true, "processor": true, "subprocessor": true,
		"organization": true, "company": true, "employee": true, "employees": true,
		"staff": true, "auditor": true, "licensee": true, "licensor": true,
		"party": true, "parties": true, "officer": true, "manager": true,
		"owner": true, "administrator": true, "user": true, "users": true,
	}

	// Words that never name a responsible party even when capitalized.
	actorStopWords = map[string]bool{
		"it": true, "this": true, "that": true, "these": true, "those": true,
		"there": true, "which": true, "who": true, "and": true, "or": true,
		"the": true, "a": true, "an": true, "each": true, "every": true,
		"any": true, "all": true, "such": true, "its": true, "their": true,
		"they": true, "he": true, "she": true, "we": true, "you": true,
	}

	actionStop = regexp.MustCompile(`[,;:.!?()]`)

	// Trimmed from the end of an action cut short by the next party.
	connectives = map[string]bool{
		"and": true, "or": true, "but": true, "while": true, "whereas": true, "then": true,
		"the": true, "a": true, "an": true, "each": true, "every": true, "any": true, "all": true,
	}
)

const (
	maxActorWords  = 4
	maxActionWords = 12
)

// Actors finds each responsible party that precedes a modal verb, together with the
// action that follows it. A party is a run of up to four capitalized or known-role
// words directly before the modal.
func Actors(text string) []models.Actor {
	var out []models.Actor
	seen := make(map[string]bool)
	for _, loc := range modalVerb.FindAllStringSubmatchIndex(text, -1) {
		words := actorWords(text[:loc[0]])
		if len(words) == 0 {
			continue
		}
		action := actionPhrase(text[loc[1]:])
		if action == "" {
			continue
		}
		if loc[4] >= 0 {
			action = "not " + action
		}
		actor := strings.Join(words, " ")
		key := strings.ToLower(actor + "|" + action)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Actor{Actor: actor, Role: roleOf(words), Action: action})
	}
	return out
}

// actorWords walks backwards from the end of prefix collecting the noun phrase.
func actorWords(prefix string) []string {
	fields := strings.Fields(prefix)
	var words []string
	for i := len(fields) - 1; i >= 0 && len(words) < maxActorWords; i-- {
		w := strings.Trim(fields[i], `"'“”‘’`)
		if w == "" || strings.ContainsAny(w, ",;:.()") {
			break
		}
		lower := strings.ToLower(w)
		if actorStopWords[lower] {
			break
		}
		if !knownRoles[lower] && !startsUpper(w) {
			break
		}
		words = append([]string{w}, words...)
	}
	return words
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func roleOf(words []string) string {
	for i := len(words) - 1; i >= 0; i-- {
		if lower := strings.ToLower(words[i]); knownRoles[lower] {
			return lower
		}
	}
	return ""
}

// actionPhrase returns the verb phrase after a modal, up to punctuation, the next
// party's own modal or a word limit.
func actionPhrase(rest string) string {
	if loc := actionStop.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	fields := strings.Fields(rest)
	for _, loc := range modalVerb.FindAllStringIndex(rest, -1) {
		prefix := rest[:loc[0]]
		actor := actorWords(prefix)
		if len(actor) == 0 {
			continue
		}
		fields = strings.Fields(prefix)
		fields = fields[:len(fields)-len(actor)]
		for len(fields) > 0 && connectives[strings.ToLower(fields[len(fields)-1])] {
			fields = fields[:len(fields)-1]
		}
		break
	}
	if len(fields) > maxActionWords {
		fields = fields[:maxActionWords]
	}
	return strings.Join(fields, " ")
}
