// Package riskmatch scans sentences for risk indicators and synthesizes risk candidates.
package riskmatch

import (
	"regexp"

	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/pkg/utils"
)

// Config holds the base confidence of each indicator pattern.
type Config struct {
	Security     float64 `yaml:"security"`
	Compliance   float64 `yaml:"compliance"`
	Privacy      float64 `yaml:"privacy"`
	Availability float64 `yaml:"availability"`
}

// ReviewGate reports whether a candidate with the given confidence needs human review.
type ReviewGate func(confidence float64) bool

// DefaultConfig returns the standard pattern confidences.
func DefaultConfig() Config {
	return Config{
		Security:     0.6,
		Compliance:   0.7,
		Privacy:      0.75,
		Availability: 0.65,
	}
}

// Category labels attached to risk candidates.
const (
	CategorySecurity     = "Compliance/Security"
	CategoryCompliance   = "Compliance"
	CategoryPrivacy      = "Privacy"
	CategoryAvailability = "Availability"
)

const (
	maxTitleRunes  = 100
	maxSourceRunes = 500
)

// Pattern is one risk indicator: a keyword vocabulary with a category and confidence.
type Pattern struct {
	Name       string
	Category   string
	Confidence float64
	Keywords   *regexp.Regexp
}

var (
	securityKeywords     = regexp.MustCompile(`(?i)\b(security|vulnerabilit(?:y|ies)|breach(?:es)?|attacks?|malware|ransomware|unauthori[sz]ed access|exploit(?:s|ed)?|intrusion|phishing)\b`)
	complianceKeywords   = regexp.MustCompile(`(?i)\b(compliance|non-compliance|regulations?|regulatory|audits?|penalty|penalties|violations?|sanctions?)\b`)
	privacyKeywords      = regexp.MustCompile(`(?i)\b(privacy|personal data|personal information|pii|gdpr|ccpa|hipaa|data protection|confidential(?:ity)?)\b`)
	availabilityKeywords = regexp.MustCompile(`(?i)\b(availability|outages?|downtime|disruptions?|service levels?|sla|uptime|disaster recovery|business continuity)\b`)
)

// Matcher checks sentences against the patterns in priority order.
type Matcher struct {
	patterns       []Pattern
	requiresReview ReviewGate
}

// NewMatcher returns a matcher using the confidences in cfg. Zero values fall back
// to DefaultConfig. A nil gate sends every candidate to review.
func NewMatcher(cfg Config, gate ReviewGate) *Matcher {
	def := DefaultConfig()
	pick := func(v, d float64) float64 {
		if v == 0 {
			return d
		}
		return v
	}
	if gate == nil {
		gate = func(float64) bool { return true }
	}
	return &Matcher{
		patterns: []Pattern{
			{Name: "security", Category: CategorySecurity, Confidence: pick(cfg.Security, def.Security), Keywords: securityKeywords},
			{Name: "compliance", Category: CategoryCompliance, Confidence: pick(cfg.Compliance, def.Compliance), Keywords: complianceKeywords},
			{Name: "privacy", Category: CategoryPrivacy, Confidence: pick(cfg.Privacy, def.Privacy), Keywords: privacyKeywords},
			{Name: "availability", Category: CategoryAvailability, Confidence: pick(cfg.Availability, def.Availability), Keywords: availabilityKeywords},
		},
		requiresReview: gate,
	}
}

// Patterns returns the patterns in the order they are checked.
func (m *Matcher) Patterns() []Pattern {
	return append([]Pattern(nil), m.patterns...)
}

// Match returns a risk candidate for the first pattern that sentence matches.
func (m *Matcher) Match(sentence string) (models.ExtractedRisk, bool) {
	for _, p := range m.patterns {
		if !p.Keywords.MatchString(sentence) {
			continue
		}
		return models.ExtractedRisk{
			Title:             utils.TruncateRunes(sentence, maxTitleRunes),
			Description:       sentence,
			Threat:            Threat(sentence),
			Vulnerability:     Vulnerability(sentence),
			ImpactDescription: ImpactDescription(sentence),
			Category:          p.Category,
			Likelihood:        Likelihood(sentence),
			Impact:            Impact(sentence),
			SourceClause:      utils.TruncateRunes(sentence, maxSourceRunes),
			Confidence:        p.Confidence,
			RequiresReview:    m.requiresReview(p.Confidence),
		}, true
	}
	return models.ExtractedRisk{}, false
}
