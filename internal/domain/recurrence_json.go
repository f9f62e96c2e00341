package domain

import (
	"encoding/json"
	"fmt"
)

// ruleJSON is the storage form of a rule:
//
//	{"type":"daily"}
//	{"type":"interval","value":3,"anchor":"2024-01-01"}
//	{"type":"weekly","value":[0,2,4]}
//	{"type":"specific_dates","value":["2024-03-08"]}
//
// anchor is optional; records written without it get the anchor from their
// owner (see Reminder.UnmarshalJSON).
type ruleJSON struct {
	Type   RuleKind        `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`
	Anchor *Date           `json:"anchor,omitempty"`
}

type ruleEncoder struct {
	out ruleJSON
	err error
}

func (e *ruleEncoder) VisitDaily(DailyRule) {
	e.out = ruleJSON{Type: RuleDaily}
}

func (e *ruleEncoder) VisitInterval(r IntervalRule) {
	e.out = ruleJSON{Type: RuleInterval}
	e.out.Value, e.err = json.Marshal(r.Every())
	if !r.Anchor().IsZero() {
		a := r.Anchor()
		e.out.Anchor = &a
	}
}

func (e *ruleEncoder) VisitWeekly(r WeeklyRule) {
	days := make([]int, 0, 7)
	for _, d := range r.Days() {
		days = append(days, int(d))
	}
	e.out = ruleJSON{Type: RuleWeekly}
	e.out.Value, e.err = json.Marshal(days)
}

func (e *ruleEncoder) VisitSpecificDates(r SpecificDatesRule) {
	dates := make([]string, 0, len(r.dates))
	for _, d := range r.Dates() {
		dates = append(dates, d.String())
	}
	e.out = ruleJSON{Type: RuleSpecificDates}
	e.out.Value, e.err = json.Marshal(dates)
}

// MarshalRule encodes a rule in the storage format.
func MarshalRule(r Rule) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil rule", ErrInvalidRecurrenceRule)
	}
	enc := &ruleEncoder{}
	r.Accept(enc)
	if enc.err != nil {
		return nil, enc.err
	}
	return json.Marshal(enc.out)
}

// UnmarshalRule decodes the storage format. Any malformed value yields
// ErrInvalidRecurrenceRule.
func UnmarshalRule(data []byte) (Rule, error) {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrenceRule, err)
	}

	switch raw.Type {
	case RuleDaily:
		return DailyRule{}, nil

	case RuleInterval:
		var n int
		if err := json.Unmarshal(raw.Value, &n); err != nil {
			return nil, fmt.Errorf("%w: interval value: %v", ErrInvalidRecurrenceRule, err)
		}
		var anchor Date
		if raw.Anchor != nil {
			anchor = *raw.Anchor
		}
		return NewIntervalRule(n, anchor)

	case RuleWeekly:
		var idx []int
		if err := json.Unmarshal(raw.Value, &idx); err != nil {
			return nil, fmt.Errorf("%w: weekly value: %v", ErrInvalidRecurrenceRule, err)
		}
		days := make([]Weekday, 0, len(idx))
		for _, i := range idx {
			days = append(days, Weekday(i))
		}
		return NewWeeklyRule(days...)

	case RuleSpecificDates:
		var values []string
		if err := json.Unmarshal(raw.Value, &values); err != nil {
			return nil, fmt.Errorf("%w: specific_dates value: %v", ErrInvalidRecurrenceRule, err)
		}
		return ParseSpecificDates(values...)

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRecurrenceRule, raw.Type)
	}
}
