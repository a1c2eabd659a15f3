// Package datetime cleans and parses loosely formatted date/time input.
//
// Input typically arrives copy-pasted from chat clients and carries
// invisible Unicode (zero-width spaces, non-breaking spaces) and curly
// quotes that break naive parsing. Normalize strips all of that and
// produces a canonical uppercase form that Parse then matches against a
// fixed list of accepted layouts.
package datetime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateTime indicates the input matched none of the accepted
// date/time layouts after normalization.
var ErrInvalidDateTime = errors.New("invalid date/time")

// CanonicalLayout is the storage and display format for accepted instants.
const CanonicalLayout = "2006-01-02 03:04 PM"

// layouts are attempted in priority order. The 24-hour layouts carrying a
// meridiem suffix accept inputs like "14:15 PM"; the hour wins and the
// suffix is ignored (kept for leniency with sloppy senders).
var layouts = []string{
	"2006-01-02 3:04 PM",
	"2006-01-02 15:04 PM",
	"2006-01-02 15:04",
	"2006-01-02 3:04PM",
	"2006-01-02 15:04PM",
	"2006-01-02 3:04",
}

// Runes removed outright before any other cleanup. U+00A0 and U+202F are
// removed rather than converted to spaces so "02:15 PM" still matches
// the no-space meridiem layout.
const strippedRunes = "\u200b\u200c\u202f\ufeff\u00a0"

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// Normalize cleans raw user input into the canonical parse form: trims
// surrounding whitespace, drops invisible code points, straightens curly
// quotes, collapses whitespace runs to single spaces and upper-cases the
// result. Normalize is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedRunes, r) {
			return -1
		}
		return r
	}, s)
	s = quoteReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToUpper(s)
}

// Parse matches normalized text against the accepted layouts in priority
// order and returns the first successful match in the local time zone.
// Out-of-range components (month 13, hour 25) fail every layout and yield
// ErrInvalidDateTime.
func Parse(text string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, text)
}

// Canonical formats an instant using CanonicalLayout.
func Canonical(t time.Time) string {
	return t.Format(CanonicalLayout)
}
