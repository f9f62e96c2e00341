// Package recurrence resolves recurrence rules into calendar dates and
// concrete occurrences.
package recurrence

import "github.com/tazhate/familyreminders/internal/domain"

// OccursOn reports whether rule matches date. It is a pure function of its
// arguments and never consults the wall clock.
func OccursOn(rule domain.Rule, date domain.Date) bool {
	if rule == nil {
		return false
	}
	return rule.OccursOn(date)
}
