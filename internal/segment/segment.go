// Package segment splits extracted document text into sentence units.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unit is one candidate sentence. Clause is set when the unit is long enough to be
// classified as a clause; every unit is long enough for risk scanning.
type Unit struct {
	Index  int
	Text   string
	Clause bool
}

// Segmenter filters sentences by length. Lengths are counted in runes.
type Segmenter struct {
	MinRiskLength   int
	MinClauseLength int
}

// New returns a Segmenter with the given thresholds.
func New(minRiskLength, minClauseLength int) *Segmenter {
	return &Segmenter{MinRiskLength: minRiskLength, MinClauseLength: minClauseLength}
}

// Segment splits text and drops units shorter than MinRiskLength.
// The same text always yields the same units in the same order.
func (s *Segmenter) Segment(text string) []Unit {
	var units []Unit
	for _, sentence := range Split(text) {
		n := utf8.RuneCountInString(sentence)
		if n < s.MinRiskLength {
			continue
		}
		units = append(units, Unit{
			Index:  len(units),
			Text:   sentence,
			Clause: n >= s.MinClauseLength,
		})
	}
	return units
}

// Split breaks text after '.', '!' or '?' when followed by whitespace, and at blank
// lines. Whitespace inside a sentence is collapsed to single spaces.
func Split(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		next := i + 1
		if next >= len(runes) {
			break
		}
		switch {
		case isTerminal(r) && unicode.IsSpace(runes[next]):
			flush()
		case r == '\n' && blankLineAhead(runes, next):
			flush()
		}
	}
	flush()
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// blankLineAhead reports whether only horizontal whitespace separates position i
// from another newline.
func blankLineAhead(runes []rune, i int) bool {
	for ; i < len(runes); i++ {
		switch runes[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}
