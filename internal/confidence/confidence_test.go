package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockgoats/erm-sub000/internal/classify"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/signals"
)

func signalSet(actors, deadlines, deps, ambiguous bool) signals.Set {
	var s signals.Set
	if actors {
		s.Actors = []models.Actor{{Actor: "Vendor", Action: "patch"}}
	}
	if deadlines {
		s.Deadlines = []models.Deadline{{Text: "within 30 days", Relative: "30 days"}}
	}
	if deps {
		s.Dependencies = []models.Dependency{{DependsOn: "Section 4", Condition: "subject to"}}
	}
	if ambiguous {
		s.Ambiguities = []models.Ambiguity{{VagueTerms: []string{"reasonable"}}}
	}
	return s
}

func obligation() classify.Classification {
	return classify.Classification{Type: models.ClauseObligation, BaseConfidence: 0.7}
}

func TestFuse_scenario(t *testing.T) {
	// obligation with actor and deadline
	got := DefaultPolicy().Fuse(obligation(), signalSet(true, true, false, false))
	assert.Equal(t, 0.9, got.Value)
	assert.False(t, got.RequiresReview)
}

func TestFuse_boundaryIsNotReview(t *testing.T) {
	// 0.7 + 0.1 lands exactly on the threshold
	got := DefaultPolicy().Fuse(obligation(), signalSet(true, false, false, false))
	assert.Equal(t, 0.8, got.Value)
	assert.False(t, got.RequiresReview)
}

func TestFuse_baseOnlyRequiresReview(t *testing.T) {
	got := DefaultPolicy().Fuse(obligation(), signals.Set{})
	assert.Equal(t, 0.7, got.Value)
	assert.True(t, got.RequiresReview)
}

func TestFuse_ambiguityCapsAndForcesReview(t *testing.T) {
	got := DefaultPolicy().Fuse(obligation(), signalSet(true, true, true, true))
	assert.Equal(t, 0.6, got.Value)
	assert.True(t, got.RequiresReview)

	// Even when the cap is above the threshold, ambiguity still forces review.
	p := DefaultPolicy()
	p.AmbiguityCap = 1
	got = p.Fuse(obligation(), signalSet(true, true, true, true))
	assert.GreaterOrEqual(t, got.Value, p.ReviewThreshold)
	assert.True(t, got.RequiresReview)
}

func TestFuse_clampsToOne(t *testing.T) {
	c := classify.Classification{Type: models.ClauseProhibition, BaseConfidence: 0.95}
	got := DefaultPolicy().Fuse(c, signalSet(true, true, true, false))
	assert.Equal(t, 1.0, got.Value)
}

// Adding any positive signal never lowers the score, for every clause type and
// every combination of the other signals.
func TestFuse_monotonic(t *testing.T) {
	p := DefaultPolicy()
	for _, ct := range models.ClauseTypes {
		c := classify.Classification{Type: ct, BaseConfidence: classify.BaseConfidence(ct)}
		for mask := 0; mask < 16; mask++ {
			a, d, dep, amb := mask&1 != 0, mask&2 != 0, mask&4 != 0, mask&8 != 0
			base := p.Fuse(c, signalSet(a, d, dep, amb)).Value
			for _, more := range []signals.Set{
				signalSet(true, d, dep, amb),
				signalSet(a, true, dep, amb),
				signalSet(a, d, true, amb),
			} {
				assert.GreaterOrEqual(t, p.Fuse(c, more).Value, base, "type %s mask %04b", ct, mask)
			}
			if amb {
				assert.True(t, p.Fuse(c, signalSet(a, d, dep, amb)).RequiresReview)
			}
		}
	}
}

// requiresReview holds exactly when score < threshold or the clause is ambiguous.
func TestFuse_reviewGateBiconditional(t *testing.T) {
	p := DefaultPolicy()
	for _, ct := range models.ClauseTypes {
		c := classify.Classification{Type: ct, BaseConfidence: classify.BaseConfidence(ct)}
		for mask := 0; mask < 16; mask++ {
			s := signalSet(mask&1 != 0, mask&2 != 0, mask&4 != 0, mask&8 != 0)
			got := p.Fuse(c, s)
			want := got.Value < p.ReviewThreshold || s.HasAmbiguities()
			assert.Equal(t, want, got.RequiresReview, "type %s mask %04b", ct, mask)
			assert.True(t, got.Value >= 0 && got.Value <= 1)
		}
	}
}

func TestPolicy_reviewGate(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.ReviewGate(0.79))
	assert.False(t, p.ReviewGate(0.8))
	assert.Equal(t, p.RequiresReview(0.6, false), p.ReviewGate(0.6))
}
