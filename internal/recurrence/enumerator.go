package recurrence

import (
	"sync"
	"time"

	"github.com/samber/mo"
	"github.com/tazhate/familyreminders/internal/domain"
)

// NextOccurrenceOnOrAfter scans from, from+1, ..., from+horizonDays-1 and
// returns the first matching date.
//
// The scan is a plain day-by-day loop. It is the reference implementation
// for every rule kind; any closed-form shortcut must return the same dates.
func NextOccurrenceOnOrAfter(rule domain.Rule, from domain.Date, horizonDays int) mo.Option[domain.Date] {
	for i := 0; i < horizonDays; i++ {
		d := from.AddDays(i)
		if OccursOn(rule, d) {
			return mo.Some(d)
		}
	}
	return mo.None[domain.Date]()
}

// AllOccurrencesInWindow returns every matching date in
// [from, from+horizonDays) in ascending order.
func AllOccurrencesInWindow(rule domain.Rule, from domain.Date, horizonDays int) []domain.Date {
	var out []domain.Date
	for i := 0; i < horizonDays; i++ {
		d := from.AddDays(i)
		if OccursOn(rule, d) {
			out = append(out, d)
		}
	}
	return out
}

// Enumerator applies the configured horizons. Horizons can be swapped at
// runtime (config reload) and are read under a lock.
type Enumerator struct {
	mu       sync.RWMutex
	horizons Horizons
	location *time.Location
}

func NewEnumerator(h Horizons, loc *time.Location) *Enumerator {
	if loc == nil {
		loc = time.UTC
	}
	return &Enumerator{horizons: h.WithDefaults(), location: loc}
}

func (e *Enumerator) Horizons() Horizons {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.horizons
}

func (e *Enumerator) SetHorizons(h Horizons) {
	e.mu.Lock()
	e.horizons = h.WithDefaults()
	e.mu.Unlock()
}

func (e *Enumerator) Location() *time.Location { return e.location }

// Today returns the calendar date of now in the enumerator's location.
func (e *Enumerator) Today(now time.Time) domain.Date {
	return domain.DateOf(now.In(e.location))
}

// NextUpcoming returns the next matching date within the upcoming horizon.
func (e *Enumerator) NextUpcoming(rule domain.Rule, from domain.Date) mo.Option[domain.Date] {
	return NextOccurrenceOnOrAfter(rule, from, e.Horizons().Upcoming)
}

// Upcoming returns matching dates within the upcoming horizon.
func (e *Enumerator) Upcoming(rule domain.Rule, from domain.Date) []domain.Date {
	return AllOccurrencesInWindow(rule, from, e.Horizons().Upcoming)
}

// Materialization returns matching dates within the interval
// pre-scheduling horizon.
func (e *Enumerator) Materialization(rule domain.Rule, from domain.Date) []domain.Date {
	return AllOccurrencesInWindow(rule, from, e.Horizons().IntervalMaterialization)
}

// UpcomingOccurrences crosses the upcoming dates of r with its times of day,
// dropping instants at or before now. Result is ordered by instant.
func (e *Enumerator) UpcomingOccurrences(r *domain.Reminder, now time.Time) []domain.Occurrence {
	var out []domain.Occurrence
	for _, d := range e.Upcoming(r.Rule, e.Today(now)) {
		for _, t := range domain.NormalizeTimes(r.Times) {
			occ := domain.Occurrence{Date: d, Time: t}
			if !occ.At(e.location).After(now) {
				continue
			}
			out = append(out, occ)
		}
	}
	return out
}

// NextOccurrence returns the first future occurrence of r within the
// upcoming horizon.
func (e *Enumerator) NextOccurrence(r *domain.Reminder, now time.Time) mo.Option[domain.Occurrence] {
	occs := e.UpcomingOccurrences(r, now)
	if len(occs) == 0 {
		return mo.None[domain.Occurrence]()
	}
	return mo.Some(occs[0])
}
