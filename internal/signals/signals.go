// Package signals extracts structural signals from a clause: who must act, by when,
// on what it depends, and which terms are too vague to verify.
package signals

import (
	"time"

	"github.com/blockgoats/erm-sub000/internal/models"
)

// Set holds every signal found in one clause.
type Set struct {
	Actors       []models.Actor
	Deadlines    []models.Deadline
	Dependencies []models.Dependency
	Ambiguities  []models.Ambiguity
}

// HasActors reports whether at least one actor was found.
func (s Set) HasActors() bool { return len(s.Actors) > 0 }

// HasDeadlines reports whether at least one deadline was found.
func (s Set) HasDeadlines() bool { return len(s.Deadlines) > 0 }

// HasDependencies reports whether at least one dependency was found.
func (s Set) HasDependencies() bool { return len(s.Dependencies) > 0 }

// HasAmbiguities reports whether at least one vague term was found.
func (s Set) HasAmbiguities() bool { return len(s.Ambiguities) > 0 }

// Extract runs all four extractors over text. now anchors relative deadlines.
func Extract(text string, now time.Time) Set {
	return Set{
		Actors:       Actors(text),
		Deadlines:    Deadlines(text, now),
		Dependencies: Dependencies(text),
		Ambiguities:  Ambiguities(text),
	}
}
