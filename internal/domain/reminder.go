package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type ReminderKind string

const (
	KindReminder   ReminderKind = "reminder"
	KindMedication ReminderKind = "medication"
	KindCustom     ReminderKind = "custom"
)

// MaxCustomReminders caps the custom reminders collection.
const MaxCustomReminders = 10

// Reminder is a titled event with a recurrence rule and one or more
// times of day. TriggerIDs are the dispatcher handles currently scheduled
// for it.
type Reminder struct {
	ID         string
	Kind       ReminderKind
	Title      string
	Body       string
	Payload    map[string]string
	Times      []TimeOfDay // sorted, unique
	Rule       Rule
	TriggerIDs []string
	CreatedAt  time.Time
}

// Validate checks the fields the engine depends on.
func (r *Reminder) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("reminder title cannot be empty")
	}
	if r.Rule == nil {
		return fmt.Errorf("%w: reminder has no rule", ErrInvalidRecurrenceRule)
	}
	if len(r.Times) == 0 {
		return fmt.Errorf("reminder needs at least one time of day")
	}
	for _, t := range r.Times {
		if !t.Valid() {
			return fmt.Errorf("invalid time of day: %02d:%02d", t.Hour, t.Minute)
		}
	}
	return nil
}

// NormalizeTimes sorts the times of day and drops duplicates.
func NormalizeTimes(times []TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(times))
	out = append(out, times...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	uniq := out[:0]
	for i, t := range out {
		if i > 0 && t == out[i-1] {
			continue
		}
		uniq = append(uniq, t)
	}
	return uniq
}

// Occurrence is one concrete (date, time) instance of a reminder.
// Never persisted.
type Occurrence struct {
	Date Date
	Time TimeOfDay
}

// At returns the occurrence instant in loc.
func (o Occurrence) At(loc *time.Location) time.Time {
	return o.Date.At(o.Time, loc)
}

type reminderJSON struct {
	ID         string            `json:"id"`
	Kind       ReminderKind      `json:"kind,omitempty"`
	Title      string            `json:"title"`
	Body       string            `json:"body,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Times      []TimeOfDay       `json:"times"`
	Frequency  json.RawMessage   `json:"frequency"`
	TriggerIDs []string          `json:"triggerIds,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (r Reminder) MarshalJSON() ([]byte, error) {
	rule, err := MarshalRule(r.Rule)
	if err != nil {
		return nil, err
	}
	return json.Marshal(reminderJSON{
		ID:         r.ID,
		Kind:       r.Kind,
		Title:      r.Title,
		Body:       r.Body,
		Payload:    r.Payload,
		Times:      r.Times,
		Frequency:  rule,
		TriggerIDs: r.TriggerIDs,
		CreatedAt:  r.CreatedAt,
	})
}

// UnmarshalJSON decodes a stored reminder. Interval rules written without an
// anchor are anchored at the reminder's creation date.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var raw reminderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rule, err := UnmarshalRule(raw.Frequency)
	if err != nil {
		return fmt.Errorf("reminder %s: %w", raw.ID, err)
	}
	if ir, ok := rule.(IntervalRule); ok && ir.Anchor().IsZero() {
		rule = ir.WithAnchor(DateOf(raw.CreatedAt))
	}
	*r = Reminder{
		ID:         raw.ID,
		Kind:       raw.Kind,
		Title:      raw.Title,
		Body:       raw.Body,
		Payload:    raw.Payload,
		Times:      raw.Times,
		Rule:       rule,
		TriggerIDs: raw.TriggerIDs,
		CreatedAt:  raw.CreatedAt,
	}
	return nil
}
