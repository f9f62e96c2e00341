package domain

import "errors"

var (
	// ErrInvalidRecurrenceRule is returned when a rule is built from bad input
	// (interval below 1, weekday outside 0..6, malformed date string).
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

	// ErrPastTriggerRejected is returned by a dispatcher asked to schedule an
	// instant at or before the current time. Planners treat it as a skip.
	ErrPastTriggerRejected = errors.New("trigger instant is not in the future")

	// ErrPersistence wraps read/write failures of the backing store.
	ErrPersistence = errors.New("persistence failure")

	// ErrLimitExceeded is returned when a collection cap would be exceeded.
	ErrLimitExceeded = errors.New("limit exceeded")

	ErrNotFound = errors.New("not found")
)
