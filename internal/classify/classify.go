// Package classify assigns a clause type to a sentence using lexical indicators.
package classify

import (
	"regexp"
	"strings"

	"github.com/blockgoats/erm-sub000/internal/models"
)

// Classification is the outcome of classifying one sentence.
type Classification struct {
	Type           models.ClauseType `json:"type"`
	BaseConfidence float64           `json:"base_confidence"`
	Matched        []string          `json:"matched,omitempty"`
}

// Actionable reports whether the clause carries a type other than "other".
func (c Classification) Actionable() bool {
	return c.Type != models.ClauseOther && c.Type != ""
}

// rule maps one indicator vocabulary to a clause type.
type rule struct {
	Type    models.ClauseType
	Pattern *regexp.Regexp
}

var (
	rules           []rule
	baseConfidences map[models.ClauseType]float64
)

func init() {
	// Checked in order; the first rule that matches decides the type. Prohibition
	// precedes obligation because "must not" contains "must", and explicit
	// "shall mean" definitions precede obligation for the same reason.
	rules = []rule{
		{models.ClauseProhibition, regexp.MustCompile(`(?i)\b(must not|shall not|may not|cannot|can not|will not|prohibited|forbidden|not permitted|not allowed)\b`)},
		{models.ClauseDefinition, regexp.MustCompile(`(?i)\b(shall mean|shall be defined as|shall refer to)\b`)},
		{models.ClauseObligation, regexp.MustCompile(`(?i)\b(shall|must|required to|is required|are required|mandatory|obligated|is responsible for|are responsible for)\b`)},
		{models.ClausePenalty, regexp.MustCompile(`(?i)\b(penalty|penalties|fines?|sanctions?|consequences?|liquidated damages|forfeit)\b`)},
		{models.ClauseCondition, regexp.MustCompile(`(?i)\b(if|unless|provided that|in the event|subject to|conditional upon|on condition that)\b`)},
		{models.ClauseRight, regexp.MustCompile(`(?i)\b(may|is entitled to|are entitled to|has the right|have the right|reserves the right)\b`)},
		{models.ClauseDefinition, regexp.MustCompile(`(?i)\b(means|is defined as|are defined as|refers to|hereinafter)\b`)},
	}

	baseConfidences = map[models.ClauseType]float64{
		models.ClauseProhibition: 0.75,
		models.ClauseObligation:  0.7,
		models.ClausePenalty:     0.7,
		models.ClauseDefinition:  0.65,
		models.ClauseCondition:   0.6,
		models.ClauseRight:       0.6,
		models.ClauseOther:       0,
	}
}

// BaseConfidence returns the starting confidence for a clause type.
func BaseConfidence(t models.ClauseType) float64 {
	return baseConfidences[t]
}

// Classify returns the clause type of text. Sentences without any indicator are "other".
func Classify(text string) Classification {
	for _, r := range rules {
		matches := r.Pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		return Classification{
			Type:           r.Type,
			BaseConfidence: baseConfidences[r.Type],
			Matched:        dedupeLower(matches),
		}
	}
	return Classification{Type: models.ClauseOther}
}

func dedupeLower(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
