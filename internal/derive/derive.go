// Package derive computes the field values the system fills in on its
// own: the business-day-adjusted follow-up instant and the pseudo-unique
// identifiers stamped onto the completed document.
package derive

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Names of the derived fields as they appear in rendered value sets.
const (
	FieldBadge          = "badge"
	FieldReportNumber   = "report_number"
	FieldReportDateTime = "report_datetime"
)

// DefaultRoster is the badge name roster used when the deployment
// configuration does not provide one.
var DefaultRoster = []string{"Leo Tanner", "Riley Fox", "Sam Carter"}

// Generator produces derived field values. Identifiers are random, not
// unique: reports are routed by humans at low volume, so the collision
// probability (about 1 in 9 million for report numbers) is accepted.
// The random source is injected so tests can fix the seed.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	roster []string
	now    func() time.Time
}

// NewGenerator creates a Generator drawing from rng and the given badge
// roster. A nil rng falls back to a time-seeded source; an empty roster
// falls back to DefaultRoster.
func NewGenerator(rng *rand.Rand, roster []string) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(roster) == 0 {
		roster = DefaultRoster
	}
	return &Generator{
		rng:    rng,
		roster: roster,
		now:    time.Now,
	}
}

// SetClock overrides the wall clock used for the report number year.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// NextBusinessDay returns the first weekday strictly after t, pinned to
// 10:00:00 local time. The original time-of-day is discarded: a delivery
// on Friday 15:00 schedules Monday 10:00, as does any delivery on a
// Saturday or Sunday.
func (g *Generator) NextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 10, 0, 0, 0, next.Location())
}

// Badge returns a random badge code of the form "12345/Name" with the
// name drawn uniformly from the roster.
func (g *Generator) Badge() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%d/%s", 10000+g.rng.Intn(90000), g.roster[g.rng.Intn(len(g.roster))])
}

// ReportNumber returns a report identifier of the form "C2025-01234567":
// the current year and an 8-digit numeric suffix whose leading digit is
// always the literal 0.
func (g *Generator) ReportNumber() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("C%d-0%d", g.now().Year(), 1000000+g.rng.Intn(9000000))
}
