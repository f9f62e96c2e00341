package caldav

import "time"

// Calendar represents a remote calendar collection
type Calendar struct {
	Path        string
	DisplayName string
	Description string
}

// Event is one VEVENT as published by the engine. Recurring events carry
// either RRule (RFC 5545 value without the "RRULE:" prefix) or RDates.
type Event struct {
	UID         string
	Summary     string
	Description string
	Categories  []string
	Start       time.Time
	Duration    time.Duration // 0 means no DTEND/DURATION
	AllDay      bool
	RRule       string
	RDates      []time.Time
	Alarms      []time.Duration // VALARM offsets before Start
}
