package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/familyreminders/internal/clients/caldav"
	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/recurrence"
	"github.com/tazhate/familyreminders/internal/repository"
)

const (
	uidSuffix = "@familyreminders"

	reminderEventDuration = 15 * time.Minute

	// Feb 29 birthdays are published as explicit dates this many years ahead.
	leapBirthdayYears = 10
)

// CalendarClient is the CalDAV side. *caldav.Client implements it.
type CalendarClient interface {
	IsConfigured() bool
	PutEvent(ctx context.Context, event *caldav.Event) error
	DeleteEvent(ctx context.Context, uid string) error
	ListEventUIDs(ctx context.Context, suffix string) ([]string, error)
}

// CalendarService mirrors reminders and birthdays into a CalDAV calendar so
// they show up in Apple Calendar. Publishing is best effort: the dispatcher
// stays the source of notifications.
type CalendarService struct {
	repo   *repository.Repository
	client CalendarClient
	enum   *recurrence.Enumerator
	now    func() time.Time
	log    *logrus.Entry
}

func NewCalendarService(repo *repository.Repository, client CalendarClient, enum *recurrence.Enumerator, logger *logrus.Logger) *CalendarService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CalendarService{
		repo:   repo,
		client: client,
		enum:   enum,
		now:    time.Now,
		log:    logger.WithField("component", "calendar"),
	}
}

// IsConfigured returns true if CalDAV client is configured
func (s *CalendarService) IsConfigured() bool {
	return s != nil && s.client != nil && s.client.IsConfigured()
}

// ReminderUIDPrefix is shared by all events of one reminder (one per time of day).
func ReminderUIDPrefix(id string) string {
	return "reminder-" + id + "-"
}

func reminderUID(id string, t domain.TimeOfDay) string {
	return fmt.Sprintf("%s%02d%02d%s", ReminderUIDPrefix(id), t.Hour, t.Minute, uidSuffix)
}

func BirthdayUID(id string) string {
	return "birthday-" + id + uidSuffix
}

// ReminderEvents renders r as one recurring event per time of day.
func (s *CalendarService) ReminderEvents(r *domain.Reminder, now time.Time) ([]caldav.Event, error) {
	loc := s.enum.Location()
	today := s.enum.Today(now)

	var events []caldav.Event
	for _, t := range domain.NormalizeTimes(r.Times) {
		rec, err := recurrence.ToRecurrence(r.Rule, today, t, loc)
		if err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		events = append(events, caldav.Event{
			UID:         reminderUID(r.ID, t),
			Summary:     r.Title,
			Description: r.Body,
			Categories:  []string{string(r.Kind)},
			Start:       rec.Start,
			Duration:    reminderEventDuration,
			RRule:       rec.RRule,
			RDates:      rec.RDates,
			Alarms:      []time.Duration{0},
		})
	}
	return events, nil
}

// BirthdayEvent renders b as a yearly all-day event. Feb 29 cannot be a
// yearly RRULE with the Mar 1 fallback, so it becomes a list of dates.
func (s *CalendarService) BirthdayEvent(b *domain.Birthday, now time.Time) caldav.Event {
	today := s.enum.Today(now)
	next := b.NextOccurrence(today)

	ev := caldav.Event{
		UID:        BirthdayUID(b.ID),
		Summary:    "🎂 " + b.Name,
		Categories: []string{"birthday"},
		Start:      next.Time(),
		Duration:   24 * time.Hour,
		AllDay:     true,
		Alarms:     []time.Duration{0},
	}
	if b.Notes != "" {
		ev.Description = b.Notes
	}
	if b.NotifyDaysBefore > 0 {
		ev.Alarms = append(ev.Alarms, time.Duration(b.NotifyDaysBefore)*24*time.Hour)
	}

	if b.Date.Month == time.February && b.Date.Day == 29 {
		for i := 0; i < leapBirthdayYears; i++ {
			ev.RDates = append(ev.RDates, b.Date.In(next.Year()+i).Time())
		}
		return ev
	}
	opt := rrule.ROption{Freq: rrule.YEARLY, Dtstart: next.Time()}
	ev.RRule = opt.RRuleString()
	return ev
}

// PublishReminder puts the reminder's events and drops its events for times
// of day that were removed.
func (s *CalendarService) PublishReminder(ctx context.Context, r *domain.Reminder) error {
	if !s.IsConfigured() {
		return nil
	}
	events, err := s.ReminderEvents(r, s.now())
	if err != nil {
		return err
	}
	keep := map[string]bool{}
	for i := range events {
		if err := s.client.PutEvent(ctx, &events[i]); err != nil {
			return err
		}
		keep[events[i].UID] = true
	}
	_, err = s.prune(ctx, ReminderUIDPrefix(r.ID), keep)
	return err
}

func (s *CalendarService) PublishBirthday(ctx context.Context, b *domain.Birthday) error {
	if !s.IsConfigured() {
		return nil
	}
	ev := s.BirthdayEvent(b, s.now())
	return s.client.PutEvent(ctx, &ev)
}

// Unpublish deletes every managed event whose UID starts with prefix.
// Failures are logged.
func (s *CalendarService) Unpublish(ctx context.Context, prefix string) {
	if !s.IsConfigured() {
		return
	}
	if _, err := s.prune(ctx, prefix, nil); err != nil {
		s.log.WithError(err).WithField("prefix", prefix).Warn("calendar unpublish failed")
	}
}

func (s *CalendarService) prune(ctx context.Context, prefix string, keep map[string]bool) (int, error) {
	uids, err := s.client.ListEventUIDs(ctx, uidSuffix)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, uid := range uids {
		if !strings.HasPrefix(uid, prefix) || keep[uid] {
			continue
		}
		if err := s.client.DeleteEvent(ctx, uid); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// SyncResult contains sync operation results
type SyncResult struct {
	Published int
	Deleted   int
	Errors    []string
}

// Sync publishes every reminder and birthday and removes managed events
// that no longer belong to anything.
func (s *CalendarService) Sync(ctx context.Context) (*SyncResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	reminders, err := s.repo.AllReminders()
	if err != nil {
		return nil, err
	}
	birthdays, err := s.repo.Birthdays()
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	now := s.now()
	keep := map[string]bool{}

	for i := range reminders {
		events, err := s.ReminderEvents(&reminders[i], now)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		for j := range events {
			keep[events[j].UID] = true
			if err := s.client.PutEvent(ctx, &events[j]); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("put %s: %v", events[j].UID, err))
				continue
			}
			result.Published++
		}
	}
	for i := range birthdays {
		ev := s.BirthdayEvent(&birthdays[i], now)
		keep[ev.UID] = true
		if err := s.client.PutEvent(ctx, &ev); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("put %s: %v", ev.UID, err))
			continue
		}
		result.Published++
	}

	deleted, err := s.prune(ctx, "", keep)
	result.Deleted = deleted
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("prune: %v", err))
	}

	s.log.WithFields(logrus.Fields{
		"published": result.Published,
		"deleted":   result.Deleted,
		"errors":    len(result.Errors),
	}).Info("calendar synced")
	return result, nil
}
