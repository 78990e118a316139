// Package confidence fuses a clause classification with its extracted signals into a
// single score and decides whether the clause needs human review.
package confidence

import (
	"math"

	"github.com/blockgoats/erm-sub000/internal/classify"
	"github.com/blockgoats/erm-sub000/internal/signals"
)

// Policy holds the tunable fusion parameters.
type Policy struct {
	// ReviewThreshold: clauses scoring below it require review.
	ReviewThreshold float64 `yaml:"review_threshold"`
	ActorBoost      float64 `yaml:"actor_boost"`
	DeadlineBoost   float64 `yaml:"deadline_boost"`
	DependencyBoost float64 `yaml:"dependency_boost"`
	// AmbiguityCap is the highest score an ambiguous clause can reach.
	AmbiguityCap float64 `yaml:"ambiguity_cap"`
}

// DefaultPolicy returns the standard fusion parameters.
func DefaultPolicy() Policy {
	return Policy{
		ReviewThreshold: 0.8,
		ActorBoost:      0.1,
		DeadlineBoost:   0.1,
		DependencyBoost: 0.05,
		AmbiguityCap:    0.6,
	}
}

// Score is the fused confidence of one clause.
type Score struct {
	Value          float64 `json:"value"`
	RequiresReview bool    `json:"requires_review"`
}

// Fuse starts from the classification's base confidence, adds a boost for each
// present positive signal and caps the result when the clause is ambiguous.
// Ambiguity forces review regardless of the numeric value.
func (p Policy) Fuse(c classify.Classification, s signals.Set) Score {
	v := c.BaseConfidence
	if s.HasActors() {
		v += p.ActorBoost
	}
	if s.HasDeadlines() {
		v += p.DeadlineBoost
	}
	if s.HasDependencies() {
		v += p.DependencyBoost
	}
	ambiguous := s.HasAmbiguities()
	if ambiguous && v > p.AmbiguityCap {
		v = p.AmbiguityCap
	}
	v = round(clamp(v))
	return Score{Value: v, RequiresReview: p.RequiresReview(v, ambiguous)}
}

// RequiresReview is the review gate: a score below the threshold or any ambiguity.
func (p Policy) RequiresReview(score float64, ambiguous bool) bool {
	return ambiguous || score < p.ReviewThreshold
}

// ReviewGate applies the review gate to a score that carries no ambiguity.
func (p Policy) ReviewGate(score float64) bool {
	return p.RequiresReview(score, false)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// round keeps four decimals so that sums such as 0.7+0.1 compare equal to 0.8.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
