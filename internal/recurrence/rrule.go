package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/familyreminders/internal/domain"
)

// rrule weekdays in Monday-first order, matching domain.Weekday.
var rruleWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Recurrence is the RFC 5545 form of a rule at one time of day, used when
// exporting reminders to calendars.
type Recurrence struct {
	Start  time.Time   // DTSTART
	RRule  string      // RRULE value without the "RRULE:" prefix; empty for date lists
	RDates []time.Time // RDATE values
}

type rruleBuilder struct {
	start domain.Date
	tod   domain.TimeOfDay
	loc   *time.Location

	out Recurrence
	err error
}

func (b *rruleBuilder) at(d domain.Date) time.Time {
	return d.At(b.tod, b.loc)
}

func (b *rruleBuilder) setOption(opt rrule.ROption) {
	if _, err := rrule.NewRRule(opt); err != nil {
		b.err = fmt.Errorf("build rrule: %w", err)
		return
	}
	b.out = Recurrence{Start: opt.Dtstart, RRule: opt.RRuleString()}
}

func (b *rruleBuilder) VisitDaily(domain.DailyRule) {
	b.setOption(rrule.ROption{Freq: rrule.DAILY, Dtstart: b.at(b.start)})
}

func (b *rruleBuilder) VisitInterval(r domain.IntervalRule) {
	b.setOption(rrule.ROption{Freq: rrule.DAILY, Interval: r.Every(), Dtstart: b.at(r.Anchor())})
}

func (b *rruleBuilder) VisitWeekly(r domain.WeeklyRule) {
	days := make([]rrule.Weekday, 0, 7)
	for _, d := range r.Days() {
		days = append(days, rruleWeekdays[d])
	}
	// DTSTART must itself be an occurrence.
	first := NextOccurrenceOnOrAfter(r, b.start, 7).OrElse(b.start)
	b.setOption(rrule.ROption{Freq: rrule.WEEKLY, Byweekday: days, Dtstart: b.at(first)})
}

func (b *rruleBuilder) VisitSpecificDates(r domain.SpecificDatesRule) {
	dates := r.Dates()
	b.out = Recurrence{Start: b.at(dates[0])}
	for _, d := range dates {
		b.out.RDates = append(b.out.RDates, b.at(d))
	}
}

// ToRecurrence renders rule as DTSTART/RRULE/RDATE. start is the first date
// the export should cover for open-ended rules (daily, weekly); interval
// rules always start at their anchor.
func ToRecurrence(rule domain.Rule, start domain.Date, tod domain.TimeOfDay, loc *time.Location) (Recurrence, error) {
	if loc == nil {
		loc = time.UTC
	}
	b := &rruleBuilder{start: start, tod: tod, loc: loc}
	rule.Accept(b)
	if b.err != nil {
		return Recurrence{}, b.err
	}
	return b.out, nil
}

// Set builds the rrule set for the recurrence.
func (r Recurrence) Set() (*rrule.Set, error) {
	set := &rrule.Set{}
	if r.RRule != "" {
		opt, err := rrule.StrToROptionInLocation(r.RRule, r.Start.Location())
		if err != nil {
			return nil, fmt.Errorf("parse rrule %q: %w", r.RRule, err)
		}
		opt.Dtstart = r.Start
		rr, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("build rrule: %w", err)
		}
		set.RRule(rr)
	}
	for _, d := range r.RDates {
		set.RDate(d)
	}
	return set, nil
}

// Between expands the recurrence in [from, to).
func (r Recurrence) Between(from, to time.Time) ([]time.Time, error) {
	set, err := r.Set()
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, t := range set.Between(from, to, true) {
		if t.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}
