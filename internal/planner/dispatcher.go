package planner

import (
	"context"
	"time"

	"github.com/tazhate/familyreminders/internal/domain"
)

// Notification is what the user sees when a trigger fires.
type Notification struct {
	Title   string
	Body    string
	Payload map[string]string
}

// Repeat describes a repeating trigger: every day at Hour:Minute, or only on
// Weekday when it is set.
type Repeat struct {
	Hour    int
	Minute  int
	Weekday *domain.Weekday
}

// Dispatcher is the notification backend. Implementations must reject (with
// domain.ErrPastTriggerRejected) or ignore any one-shot instant at or before
// the current time.
type Dispatcher interface {
	ScheduleOneShot(ctx context.Context, n Notification, at time.Time) (string, error)
	ScheduleRepeating(ctx context.Context, n Notification, r Repeat) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context, ids []string) error
}

// PlannedTrigger is one trigger to hand to the dispatcher. Exactly one of
// At (one-shot) and Repeat (repeating) is meaningful, selected by OneShot.
type PlannedTrigger struct {
	Notification Notification
	OneShot      bool
	At           time.Time
	Repeat       Repeat
}
