// Package planner turns reminders and birthdays into concrete notification
// triggers and keeps the dispatcher in sync with them.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/recurrence"
)

// Report is the outcome of one scheduling run. Skipped counts instants the
// dispatcher refused because they were no longer in the future.
type Report struct {
	Scheduled int
	Skipped   int
	Failed    int
	Errors    []error
}

// Err joins every failure, nil when all triggers were handled.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Planner schedules reminders through a Dispatcher.
//
// Interval and SpecificDates reminders are materialized as one-shot triggers
// over a bounded horizon, so they must be re-scheduled periodically (the
// scheduler does it daily). Daily and weekly reminders use repeating
// triggers and need no refresh.
type Planner struct {
	dispatcher Dispatcher
	enum       *recurrence.Enumerator
	retry      RetryPolicy
	limiter    *rate.Limiter
	birthday   BirthdayTimes
	log        *logrus.Entry
}

type Option func(*Planner)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(pl *Planner) { pl.retry = p.withDefaults() }
}

func WithBirthdayTimes(t BirthdayTimes) Option {
	return func(pl *Planner) { pl.birthday = t }
}

func WithLogger(l *logrus.Logger) Option {
	return func(pl *Planner) { pl.log = l.WithField("component", "planner") }
}

func New(d Dispatcher, enum *recurrence.Enumerator, opts ...Option) *Planner {
	p := &Planner{
		dispatcher: d,
		enum:       enum,
		retry:      DefaultRetryPolicy,
		birthday:   DefaultBirthdayTimes,
		log:        logrus.StandardLogger().WithField("component", "planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = rate.NewLimiter(rate.Limit(p.retry.RatePerSec), p.retry.RatePerSec)
	return p
}

func (p *Planner) location() *time.Location {
	return p.enum.Location()
}

// planBuilder produces the trigger list for one reminder.
type planBuilder struct {
	p     *Planner
	now   time.Time
	today domain.Date
	times []domain.TimeOfDay
	n     Notification
	out   []PlannedTrigger
}

func (b *planBuilder) VisitDaily(domain.DailyRule) {
	for _, t := range b.times {
		b.out = append(b.out, PlannedTrigger{
			Notification: b.n,
			Repeat:       Repeat{Hour: t.Hour, Minute: t.Minute},
		})
	}
}

func (b *planBuilder) VisitWeekly(r domain.WeeklyRule) {
	for _, t := range b.times {
		for _, day := range r.Days() {
			b.out = append(b.out, PlannedTrigger{
				Notification: b.n,
				Repeat:       Repeat{Hour: t.Hour, Minute: t.Minute, Weekday: &day},
			})
		}
	}
}

func (b *planBuilder) VisitInterval(r domain.IntervalRule) {
	b.oneShots(b.p.enum.Materialization(r, b.today))
}

func (b *planBuilder) VisitSpecificDates(r domain.SpecificDatesRule) {
	var dates []domain.Date
	for _, d := range r.Dates() {
		if !d.Before(b.today) {
			dates = append(dates, d)
		}
	}
	b.oneShots(dates)
}

func (b *planBuilder) oneShots(dates []domain.Date) {
	loc := b.p.location()
	for _, d := range dates {
		for _, t := range b.times {
			at := d.At(t, loc)
			if !at.After(b.now) {
				continue
			}
			b.out = append(b.out, PlannedTrigger{Notification: b.n, OneShot: true, At: at})
		}
	}
}

// Plan returns the triggers for r without touching the dispatcher.
// One-shot instants at or before now are left out.
func (p *Planner) Plan(r *domain.Reminder, now time.Time) []PlannedTrigger {
	payload := map[string]string{"type": string(r.Kind), "id": r.ID}
	for k, v := range r.Payload {
		payload[k] = v
	}
	b := &planBuilder{
		p:     p,
		now:   now,
		today: p.enum.Today(now),
		times: domain.NormalizeTimes(r.Times),
		n:     Notification{Title: r.Title, Body: r.Body, Payload: payload},
	}
	r.Rule.Accept(b)
	return b.out
}

// Schedule cancels every trigger stored on r, then submits a fresh plan and
// stores the new handles on r. Calling it twice never leaves duplicates
// behind. If cancelling fails nothing new is scheduled.
func (p *Planner) Schedule(ctx context.Context, r *domain.Reminder, now time.Time) (Report, error) {
	if err := r.Validate(); err != nil {
		return Report{}, err
	}
	if err := p.Cancel(ctx, r.TriggerIDs); err != nil {
		return Report{}, fmt.Errorf("cancel previous triggers: %w", err)
	}
	r.TriggerIDs = nil

	ids, report := p.submit(ctx, p.Plan(r, now))
	r.TriggerIDs = ids

	p.log.WithFields(logrus.Fields{
		"reminder":  r.ID,
		"rule":      r.Rule.Kind(),
		"scheduled": report.Scheduled,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	}).Debug("reminder scheduled")

	return report, report.Err()
}

// Cancel removes the given triggers from the dispatcher.
func (p *Planner) Cancel(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return p.retry.do(ctx, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		return p.dispatcher.CancelAll(ctx, ids)
	})
}

func (p *Planner) submit(ctx context.Context, plan []PlannedTrigger) ([]string, Report) {
	var (
		ids    []string
		report Report
	)
	for _, tr := range plan {
		var id string
		err := p.retry.do(ctx, func() error {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			if tr.OneShot {
				id, err = p.dispatcher.ScheduleOneShot(ctx, tr.Notification, tr.At)
			} else {
				id, err = p.dispatcher.ScheduleRepeating(ctx, tr.Notification, tr.Repeat)
			}
			return err
		})

		switch {
		case err == nil:
			ids = append(ids, id)
			report.Scheduled++
		case errors.Is(err, domain.ErrPastTriggerRejected):
			report.Skipped++
		default:
			report.Failed++
			report.Errors = append(report.Errors, err)
			p.log.WithError(err).WithField("title", tr.Notification.Title).Warn("trigger not scheduled")
		}
	}
	return ids, report
}
