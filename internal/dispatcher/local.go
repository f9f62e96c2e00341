// Package dispatcher delivers planned notifications inside the process:
// repeating triggers run on a cron, one-shot triggers on timers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
)

// Sender delivers a fired notification to the user.
type Sender interface {
	Deliver(n planner.Notification) error
}

// Local implements planner.Dispatcher in memory. Triggers do not survive a
// restart; the scheduler re-plans everything on startup.
type Local struct {
	mu      sync.Mutex
	cron    *cron.Cron
	sender  Sender
	now     func() time.Time
	log     *logrus.Entry
	entries map[string]cron.EntryID
	timers  map[string]*time.Timer
}

var _ planner.Dispatcher = (*Local)(nil)

type LocalOption func(*Local)

// WithClock replaces time.Now for the past-instant check.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

func WithLogger(logger *logrus.Logger) LocalOption {
	return func(l *Local) { l.log = logger.WithField("component", "dispatcher") }
}

func NewLocal(loc *time.Location, sender Sender, opts ...LocalOption) *Local {
	if loc == nil {
		loc = time.UTC
	}
	l := &Local{
		cron:    cron.New(cron.WithLocation(loc)),
		sender:  sender,
		now:     time.Now,
		log:     logrus.StandardLogger().WithField("component", "dispatcher"),
		entries: map[string]cron.EntryID{},
		timers:  map[string]*time.Timer{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetSender must be called before Start.
func (l *Local) SetSender(sender Sender) {
	l.sender = sender
}

func (l *Local) Start() {
	l.cron.Start()
}

// Stop halts the cron and every pending timer.
func (l *Local) Stop() {
	<-l.cron.Stop().Done()

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

func (l *Local) ScheduleOneShot(ctx context.Context, n planner.Notification, at time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := l.now()
	if !at.After(now) {
		return "", fmt.Errorf("%s: %w", at.Format(time.RFC3339), domain.ErrPastTriggerRejected)
	}

	id := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers[id] = time.AfterFunc(at.Sub(now), func() {
		l.mu.Lock()
		_, live := l.timers[id]
		delete(l.timers, id)
		l.mu.Unlock()
		if live {
			l.deliver(id, n)
		}
	})
	return id, nil
}

func (l *Local) ScheduleRepeating(ctx context.Context, n planner.Notification, r planner.Repeat) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	spec, err := CronSpec(r)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, err := l.cron.AddFunc(spec, func() { l.deliver(id, n) })
	if err != nil {
		return "", fmt.Errorf("add cron %q: %w", spec, err)
	}
	l.entries[id] = entry
	return id, nil
}

// Cancel removes a trigger. Unknown ids are ignored.
func (l *Local) Cancel(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[id]; ok {
		l.cron.Remove(entry)
		delete(l.entries, id)
	}
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
	return nil
}

func (l *Local) CancelAll(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := l.Cancel(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of live triggers.
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries) + len(l.timers)
}

func (l *Local) deliver(id string, n planner.Notification) {
	if l.sender == nil {
		return
	}
	if err := l.sender.Deliver(n); err != nil {
		l.log.WithError(err).WithField("trigger", id).Error("delivery failed")
		return
	}
	l.log.WithFields(logrus.Fields{
		"trigger": id,
		"type":    n.Payload["type"],
		"id":      n.Payload["id"],
	}).Debug("notification delivered")
}

// CronSpec renders a repeating trigger as a standard 5-field cron spec.
func CronSpec(r planner.Repeat) (string, error) {
	tod := domain.TimeOfDay{Hour: r.Hour, Minute: r.Minute}
	if !tod.Valid() {
		return "", fmt.Errorf("invalid trigger time %02d:%02d", r.Hour, r.Minute)
	}
	if r.Weekday == nil {
		return fmt.Sprintf("%d %d * * *", r.Minute, r.Hour), nil
	}
	if !r.Weekday.Valid() {
		return "", fmt.Errorf("invalid weekday %d", int(*r.Weekday))
	}
	return fmt.Sprintf("%d %d * * %d", r.Minute, r.Hour, int(r.Weekday.TimeWeekday())), nil
}
