package signals

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blockgoats/erm-sub000/internal/models"
)

var (
	numberWords = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
		"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fourteen": 14,
		"fifteen": 15, "twenty": 20, "thirty": 30, "forty-five": 45, "sixty": 60, "ninety": 90,
	}

	relativeDeadline = regexp.MustCompile(`(?i)\b(within|no later than|not later than|after)\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fourteen|fifteen|twenty|thirty|forty-five|sixty|ninety)(?:\s*\(\d+\))?\s+(business\s+|calendar\s+|working\s+)?(hours?|days?|weeks?|months?|years?)\b`)

	absoluteDeadline = regexp.MustCompile(`(?i)\b(by|before|on or before|no later than|not later than|until)\s+((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})`)

	recurringDeadline = regexp.MustCompile(`(?i)\b(annually|semi-annually|quarterly|monthly|weekly|daily|immediately|forthwith|without undue delay|every\s+\d+\s+(?:days|weeks|months|years))\b`)

	absoluteLayouts = []string{"January 2, 2006", "January 2 2006", "2006-01-02", "2 January 2006"}

	// Durations beyond ten years are kept as unresolved relative deadlines.
	maxCount = map[string]int{
		"hour":  3650 * 24,
		"day":   3650,
		"week":  522,
		"month": 120,
		"year":  10,
	}
)

// Deadlines finds explicit dates, durations relative to now, and recurring periods.
// Relative durations of up to ten years resolve to a date; recurring periods carry
// only a description.
func Deadlines(text string, now time.Time) []models.Deadline {
	var out []models.Deadline

	for _, m := range relativeDeadline.FindAllStringSubmatch(text, -1) {
		n, ok := parseCount(m[2])
		if !ok {
			continue
		}
		unit := strings.TrimSuffix(strings.ToLower(m[4]), "s")
		business := strings.EqualFold(strings.TrimSpace(m[3]), "business") || strings.EqualFold(strings.TrimSpace(m[3]), "working")
		relative := fmt.Sprintf("%d %s", n, pluralize(unit, n))
		if business {
			relative = fmt.Sprintf("%d business %s", n, pluralize(unit, n))
		}
		d := models.Deadline{Text: m[0], Relative: relative}
		if n <= maxCount[unit] {
			date := addUnits(now, n, unit, business)
			d.Date = &date
		}
		out = append(out, d)
	}

	for _, m := range absoluteDeadline.FindAllStringSubmatch(text, -1) {
		d := models.Deadline{Text: m[0]}
		if date, ok := parseDate(m[2]); ok {
			d.Date = &date
		}
		out = append(out, d)
	}

	for _, m := range recurringDeadline.FindAllStringSubmatch(text, -1) {
		out = append(out, models.Deadline{Text: m[0], Relative: strings.ToLower(m[1])})
	}
	return out
}

func parseCount(s string) (int, bool) {
	// an out-of-range count saturates and stays unresolved
	if n, err := strconv.Atoi(s); err == nil || errors.Is(err, strconv.ErrRange) {
		return n, n > 0
	}
	n, ok := numberWords[strings.ToLower(s)]
	return n, ok
}

func addUnits(now time.Time, n int, unit string, business bool) time.Time {
	switch unit {
	case "hour":
		return now.Add(time.Duration(n) * time.Hour)
	case "week":
		return now.AddDate(0, 0, 7*n)
	case "month":
		return now.AddDate(0, n, 0)
	case "year":
		return now.AddDate(n, 0, 0)
	}
	if !business {
		return now.AddDate(0, 0, n)
	}
	// Counting from a weekend is the same as counting from the Friday before it.
	d := now
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, -1)
	case time.Sunday:
		d = d.AddDate(0, 0, -2)
	}
	d = d.AddDate(0, 0, 7*(n/5))
	for rem := n % 5; rem > 0; {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			rem--
		}
	}
	return d
}

func pluralize(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func parseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
