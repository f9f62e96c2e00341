package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/config"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/service"
)

// digestBirthdayDays is how far ahead the morning digest looks for birthdays.
const digestBirthdayDays = 7

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

type ReminderJobs interface {
	Rematerialize(ctx context.Context, now time.Time, all bool) (planner.Report, error)
	Upcoming(now time.Time) ([]service.UpcomingItem, error)
	FormatUpcoming(items []service.UpcomingItem, limit int) string
}

type BirthdayJobs interface {
	RescheduleAll(ctx context.Context, now time.Time) (planner.Report, error)
	Upcoming(now time.Time, days int) ([]service.UpcomingBirthday, error)
	FormatUpcoming(list []service.UpcomingBirthday) string
}

type CalendarJobs interface {
	IsConfigured() bool
	Sync(ctx context.Context) (*service.SyncResult, error)
}

// Scheduler runs the periodic jobs: re-materializing bounded trigger
// windows, the morning digest and the calendar sync.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	reminders ReminderJobs
	birthdays BirthdayJobs
	calendar  CalendarJobs
	sender    MessageSender
	now       func() time.Time
	log       *logrus.Entry
}

func New(cfg *config.Config, reminders ReminderJobs, birthdays BirthdayJobs, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Timezone)),
		cfg:       cfg,
		reminders: reminders,
		birthdays: birthdays,
		now:       time.Now,
		log:       logger.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

func (s *Scheduler) SetCalendar(c CalendarJobs) {
	s.calendar = c
}

// Start registers the jobs, reschedules everything once (the local
// dispatcher keeps no state across restarts) and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	specs := s.cfg.Engine.Schedules

	if _, err := s.cron.AddFunc(specs.Rematerialize, func() { s.rematerialize(ctx, false) }); err != nil {
		return fmt.Errorf("add rematerialize: %w", err)
	}
	if _, err := s.cron.AddFunc(specs.Digest, func() { s.digest() }); err != nil {
		return fmt.Errorf("add digest: %w", err)
	}
	if s.calendar != nil && s.calendar.IsConfigured() {
		if _, err := s.cron.AddFunc(specs.CalendarSync, func() { s.syncCalendar(ctx) }); err != nil {
			return fmt.Errorf("add calendar sync: %w", err)
		}
	}

	s.rematerialize(ctx, true)

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"timezone":      s.cfg.Timezone.String(),
		"rematerialize": specs.Rematerialize,
		"digest":        specs.Digest,
	}).Info("scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// rematerialize refreshes interval and date-list reminders plus every
// birthday. With all set, daily and weekly reminders are rescheduled too.
func (s *Scheduler) rematerialize(ctx context.Context, all bool) {
	now := s.now()

	report, err := s.reminders.Rematerialize(ctx, now, all)
	if err != nil {
		s.log.WithError(err).Warn("reminder rematerialization incomplete")
	}
	bReport, err := s.birthdays.RescheduleAll(ctx, now)
	if err != nil {
		s.log.WithError(err).Warn("birthday rescheduling incomplete")
	}

	s.log.WithFields(logrus.Fields{
		"all":                 all,
		"reminders_scheduled": report.Scheduled,
		"reminders_failed":    report.Failed,
		"birthdays_scheduled": bReport.Scheduled,
		"birthdays_failed":    bReport.Failed,
	}).Info("triggers rematerialized")
}

func (s *Scheduler) digest() {
	if s.sender == nil {
		return
	}
	text, err := s.digestText(s.now())
	if err != nil {
		s.log.WithError(err).Error("build digest")
		return
	}
	for _, chatID := range s.cfg.Recipients() {
		if err := s.sender.SendMessage(chatID, text); err != nil {
			s.log.WithError(err).WithField("chat", chatID).Warn("send digest")
		}
	}
}

// digestText lists today's reminders and the birthdays of the coming week.
func (s *Scheduler) digestText(now time.Time) (string, error) {
	items, err := s.reminders.Upcoming(now)
	if err != nil {
		return "", err
	}
	local := now.In(s.cfg.Timezone)
	y, m, d := local.Date()
	var today []service.UpcomingItem
	for _, it := range items {
		iy, im, id := it.At.In(s.cfg.Timezone).Date()
		if iy == y && im == m && id == d {
			today = append(today, it)
		}
	}

	birthdays, err := s.birthdays.Upcoming(now, digestBirthdayDays)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("☀️ <b>Доброе утро!</b>\n\n")
	if len(today) == 0 {
		sb.WriteString("На сегодня напоминаний нет.\n")
	} else {
		sb.WriteString(fmt.Sprintf("<b>Сегодня %d напоминаний:</b>\n", len(today)))
		sb.WriteString(s.reminders.FormatUpcoming(today, 0))
	}
	if len(birthdays) > 0 {
		sb.WriteString("\n<b>Дни рождения на неделе:</b>\n")
		sb.WriteString(s.birthdays.FormatUpcoming(birthdays))
	}
	return sb.String(), nil
}

func (s *Scheduler) syncCalendar(ctx context.Context) {
	res, err := s.calendar.Sync(ctx)
	if err != nil {
		s.log.WithError(err).Warn("calendar sync failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"published": res.Published,
		"deleted":   res.Deleted,
		"errors":    len(res.Errors),
	}).Info("calendar synced")
}
