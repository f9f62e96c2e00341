package domain

import (
	"fmt"
	"sort"
)

type RuleKind string

const (
	RuleDaily         RuleKind = "daily"
	RuleInterval      RuleKind = "interval"
	RuleWeekly        RuleKind = "weekly"
	RuleSpecificDates RuleKind = "specific_dates"
)

// Rule describes on which calendar dates an event recurs.
// The set of implementations is closed: DailyRule, IntervalRule, WeeklyRule
// and SpecificDatesRule. Code that branches on the kind should implement
// RuleVisitor, so a new variant fails to compile until every consumer
// handles it.
type Rule interface {
	Kind() RuleKind
	// OccursOn reports whether the rule matches the date. It never fails:
	// invalid rules cannot be constructed.
	OccursOn(date Date) bool
	Accept(v RuleVisitor)
	sealed()
}

// RuleVisitor has one method per rule variant.
type RuleVisitor interface {
	VisitDaily(r DailyRule)
	VisitInterval(r IntervalRule)
	VisitWeekly(r WeeklyRule)
	VisitSpecificDates(r SpecificDatesRule)
}

// DailyRule matches every date.
type DailyRule struct{}

func (DailyRule) Kind() RuleKind         { return RuleDaily }
func (DailyRule) OccursOn(Date) bool     { return true }
func (r DailyRule) Accept(v RuleVisitor) { v.VisitDaily(r) }
func (DailyRule) sealed()                {}

// IntervalRule matches every n-th day starting at the anchor.
type IntervalRule struct {
	every  int
	anchor Date
}

func NewIntervalRule(every int, anchor Date) (IntervalRule, error) {
	if every < 1 {
		return IntervalRule{}, fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidRecurrenceRule, every)
	}
	return IntervalRule{every: every, anchor: anchor}, nil
}

func (r IntervalRule) Every() int           { return r.every }
func (r IntervalRule) Anchor() Date         { return r.anchor }
func (IntervalRule) Kind() RuleKind         { return RuleInterval }
func (r IntervalRule) Accept(v RuleVisitor) { v.VisitInterval(r) }
func (IntervalRule) sealed()                {}

func (r IntervalRule) OccursOn(date Date) bool {
	d := date.DaysSince(r.anchor)
	return d >= 0 && d%r.every == 0
}

// WithAnchor returns a copy of the rule anchored at a.
func (r IntervalRule) WithAnchor(a Date) IntervalRule {
	r.anchor = a
	return r
}

// WeeklyRule matches the listed days of the week.
type WeeklyRule struct {
	days [7]bool
}

func NewWeeklyRule(days ...Weekday) (WeeklyRule, error) {
	if len(days) == 0 {
		return WeeklyRule{}, fmt.Errorf("%w: weekly rule needs at least one day", ErrInvalidRecurrenceRule)
	}
	var r WeeklyRule
	for _, d := range days {
		if !d.Valid() {
			return WeeklyRule{}, fmt.Errorf("%w: weekday index %d outside 0..6", ErrInvalidRecurrenceRule, int(d))
		}
		r.days[d] = true
	}
	return r, nil
}

// Days returns the selected weekdays in Monday-first order.
func (r WeeklyRule) Days() []Weekday {
	var out []Weekday
	for i, on := range r.days {
		if on {
			out = append(out, Weekday(i))
		}
	}
	return out
}

func (r WeeklyRule) Has(d Weekday) bool {
	return d.Valid() && r.days[d]
}

func (WeeklyRule) Kind() RuleKind            { return RuleWeekly }
func (r WeeklyRule) OccursOn(date Date) bool { return r.days[date.Weekday()] }
func (r WeeklyRule) Accept(v RuleVisitor)    { v.VisitWeekly(r) }
func (WeeklyRule) sealed()                   {}

// SpecificDatesRule matches an explicit set of dates.
type SpecificDatesRule struct {
	dates map[string]Date
}

func NewSpecificDatesRule(dates ...Date) (SpecificDatesRule, error) {
	if len(dates) == 0 {
		return SpecificDatesRule{}, fmt.Errorf("%w: no dates given", ErrInvalidRecurrenceRule)
	}
	r := SpecificDatesRule{dates: make(map[string]Date, len(dates))}
	for _, d := range dates {
		if d.IsZero() {
			return SpecificDatesRule{}, fmt.Errorf("%w: zero date", ErrInvalidRecurrenceRule)
		}
		r.dates[d.String()] = d
	}
	return r, nil
}

// ParseSpecificDates builds the rule from "YYYY-MM-DD" strings.
func ParseSpecificDates(values ...string) (SpecificDatesRule, error) {
	dates := make([]Date, 0, len(values))
	for _, v := range values {
		d, err := ParseDate(v)
		if err != nil {
			return SpecificDatesRule{}, fmt.Errorf("%w: %v", ErrInvalidRecurrenceRule, err)
		}
		dates = append(dates, d)
	}
	return NewSpecificDatesRule(dates...)
}

// Dates returns the dates in ascending order.
func (r SpecificDatesRule) Dates() []Date {
	out := make([]Date, 0, len(r.dates))
	for _, d := range r.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (SpecificDatesRule) Kind() RuleKind { return RuleSpecificDates }

func (r SpecificDatesRule) OccursOn(date Date) bool {
	_, ok := r.dates[date.String()]
	return ok
}

func (r SpecificDatesRule) Accept(v RuleVisitor) { v.VisitSpecificDates(r) }
func (SpecificDatesRule) sealed()                {}
