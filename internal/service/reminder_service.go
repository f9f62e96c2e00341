package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/recurrence"
	"github.com/tazhate/familyreminders/internal/repository"
)

// ReminderInput is what the user edits; everything else is derived.
type ReminderInput struct {
	Kind    domain.ReminderKind
	Title   string
	Body    string
	Times   []domain.TimeOfDay
	Rule    domain.Rule
	Payload map[string]string
}

type ReminderService struct {
	repo     *repository.Repository
	planner  *planner.Planner
	enum     *recurrence.Enumerator
	calendar *CalendarService
	now      func() time.Time
	log      *logrus.Entry
}

func NewReminderService(repo *repository.Repository, p *planner.Planner, enum *recurrence.Enumerator, logger *logrus.Logger) *ReminderService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReminderService{
		repo:    repo,
		planner: p,
		enum:    enum,
		now:     time.Now,
		log:     logger.WithField("component", "reminders"),
	}
}

// SetCalendar enables publishing to a CalDAV calendar.
func (s *ReminderService) SetCalendar(c *CalendarService) {
	s.calendar = c
}

func limitFor(kind domain.ReminderKind) int {
	if kind == domain.KindCustom {
		return domain.MaxCustomReminders
	}
	return 0
}

// Create validates the input, schedules its triggers and stores it.
// Custom reminders are capped at domain.MaxCustomReminders.
func (s *ReminderService) Create(ctx context.Context, in ReminderInput) (*domain.Reminder, error) {
	if in.Kind == "" {
		in.Kind = domain.KindReminder
	}
	if _, err := repository.ReminderKey(in.Kind); err != nil {
		return nil, err
	}

	if limit := limitFor(in.Kind); limit > 0 {
		existing, err := s.repo.Reminders(in.Kind)
		if err != nil {
			return nil, err
		}
		if len(existing) >= limit {
			return nil, fmt.Errorf("можно создать не больше %d своих напоминаний: %w", limit, domain.ErrLimitExceeded)
		}
	}

	now := s.now()
	r := &domain.Reminder{
		ID:        uuid.NewString(),
		Kind:      in.Kind,
		Title:     strings.TrimSpace(in.Title),
		Body:      strings.TrimSpace(in.Body),
		Payload:   in.Payload,
		Times:     domain.NormalizeTimes(in.Times),
		Rule:      s.anchored(in.Rule, now),
		CreatedAt: now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	report, schedErr := s.planner.Schedule(ctx, r, now)
	if err := s.repo.SaveReminder(*r, limitFor(r.Kind)); err != nil {
		if errors.Is(err, domain.ErrLimitExceeded) {
			_ = s.planner.Cancel(ctx, r.TriggerIDs)
			return nil, err
		}
		return r, err
	}
	s.publish(ctx, r)

	s.log.WithFields(logrus.Fields{
		"reminder":  r.ID,
		"kind":      r.Kind,
		"scheduled": report.Scheduled,
	}).Info("reminder created")
	return r, schedErr
}

// anchored gives an interval rule without anchor today's date.
func (s *ReminderService) anchored(rule domain.Rule, now time.Time) domain.Rule {
	if ir, ok := rule.(domain.IntervalRule); ok && ir.Anchor().IsZero() {
		return ir.WithAnchor(s.enum.Today(now))
	}
	return rule
}

// Update replaces the editable fields of a stored reminder and reschedules
// it. The previous triggers are cancelled first.
func (s *ReminderService) Update(ctx context.Context, kind domain.ReminderKind, id string, in ReminderInput) (*domain.Reminder, error) {
	found, err := s.repo.Reminder(kind, id)
	if err != nil {
		return nil, err
	}
	r, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("напоминание %s: %w", id, domain.ErrNotFound)
	}

	now := s.now()
	rule := in.Rule
	if ir, ok := rule.(domain.IntervalRule); ok && ir.Anchor().IsZero() {
		if stored, ok := r.Rule.(domain.IntervalRule); ok {
			rule = ir.WithAnchor(stored.Anchor())
		}
	}
	r.Title = strings.TrimSpace(in.Title)
	r.Body = strings.TrimSpace(in.Body)
	r.Times = domain.NormalizeTimes(in.Times)
	r.Rule = s.anchored(rule, now)
	if in.Payload != nil {
		r.Payload = in.Payload
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	prev := r.TriggerIDs
	_, schedErr := s.planner.Schedule(ctx, &r, now)

	// The edit wins over a concurrent reschedule: whatever triggers were
	// stored in the meantime are cancelled.
	var stale []string
	err = s.repo.UpdateReminder(kind, id, func(cur *domain.Reminder) error {
		if !slices.Equal(cur.TriggerIDs, prev) {
			stale = cur.TriggerIDs
		}
		*cur = r
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		if cerr := s.planner.Cancel(ctx, r.TriggerIDs); cerr != nil {
			s.log.WithError(cerr).WithField("reminder", id).Warn("cancel triggers")
		}
		return nil, err
	}
	if cerr := s.planner.Cancel(ctx, stale); cerr != nil {
		s.log.WithError(cerr).WithField("reminder", id).Warn("cancel stale triggers")
	}
	if err != nil {
		return &r, err
	}
	s.publish(ctx, &r)
	return &r, schedErr
}

// Delete removes a reminder and cancels its triggers.
func (s *ReminderService) Delete(ctx context.Context, kind domain.ReminderKind, id string) error {
	removed, err := s.repo.DeleteReminder(kind, id)
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return err
	}
	if cerr := s.planner.Cancel(ctx, removed.TriggerIDs); cerr != nil {
		s.log.WithError(cerr).WithField("reminder", id).Warn("cancel triggers")
	}
	if s.calendar != nil {
		s.calendar.Unpublish(ctx, ReminderUIDPrefix(removed.ID))
	}
	return err
}

func (s *ReminderService) Get(kind domain.ReminderKind, id string) (mo.Option[domain.Reminder], error) {
	return s.repo.Reminder(kind, id)
}

func (s *ReminderService) List(kind domain.ReminderKind) ([]domain.Reminder, error) {
	return s.repo.Reminders(kind)
}

// UpcomingItem is one reminder occurrence in the upcoming list.
type UpcomingItem struct {
	Reminder domain.Reminder
	At       time.Time
}

// Upcoming returns the occurrences of every reminder after now within the
// upcoming horizon, earliest first.
func (s *ReminderService) Upcoming(now time.Time) ([]UpcomingItem, error) {
	all, err := s.repo.AllReminders()
	if err != nil {
		return nil, err
	}
	loc := s.enum.Location()
	var items []UpcomingItem
	for i := range all {
		for _, occ := range s.enum.UpcomingOccurrences(&all[i], now) {
			items = append(items, UpcomingItem{Reminder: all[i], At: occ.At(loc)})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].At.Before(items[j].At) })
	return items, nil
}

// NextOccurrence returns the next instant a reminder fires, if any falls
// within the upcoming horizon.
func (s *ReminderService) NextOccurrence(r *domain.Reminder, now time.Time) mo.Option[time.Time] {
	occ, ok := s.enum.NextOccurrence(r, now).Get()
	if !ok {
		return mo.None[time.Time]()
	}
	return mo.Some(occ.At(s.enum.Location()))
}

// Rematerialize reschedules reminders whose triggers are materialized over a
// bounded window. With all set, every reminder is rescheduled (used on
// startup, when the dispatcher holds nothing).
func (s *ReminderService) Rematerialize(ctx context.Context, now time.Time, all bool) (planner.Report, error) {
	reminders, err := s.repo.AllReminders()
	if err != nil {
		return planner.Report{}, err
	}

	var total planner.Report
	for i := range reminders {
		r := &reminders[i]
		if !all && !materialized(r.Rule) {
			continue
		}
		prev := r.TriggerIDs
		report, err := s.planner.Schedule(ctx, r, now)
		if !addReport(&total, r.ID, report, err) {
			continue
		}
		if err := s.commitTriggers(ctx, r, prev); err != nil {
			total.Errors = append(total.Errors, err)
		}
	}
	return total, total.Err()
}

// commitTriggers stores the rebuilt trigger ids of r unless the stored
// reminder changed since prev was read. When it was deleted or edited
// meanwhile the other caller's state stays and the rebuilt triggers are
// cancelled.
func (s *ReminderService) commitTriggers(ctx context.Context, r *domain.Reminder, prev []string) error {
	fresh := r.TriggerIDs
	err := s.repo.UpdateReminder(r.Kind, r.ID, func(cur *domain.Reminder) error {
		if !slices.Equal(cur.TriggerIDs, prev) {
			return errRescheduled
		}
		cur.TriggerIDs = fresh
		return nil
	})
	if err == nil || errors.Is(err, domain.ErrPersistence) {
		return err
	}

	s.log.WithError(err).WithField("reminder", r.ID).Debug("dropping rebuilt triggers")
	if cerr := s.planner.Cancel(ctx, fresh); cerr != nil {
		return fmt.Errorf("cancel rebuilt triggers of %s: %w", r.ID, cerr)
	}
	return nil
}

func materialized(rule domain.Rule) bool {
	switch rule.Kind() {
	case domain.RuleInterval, domain.RuleSpecificDates:
		return true
	}
	return false
}

func (s *ReminderService) publish(ctx context.Context, r *domain.Reminder) {
	if s.calendar == nil {
		return
	}
	if err := s.calendar.PublishReminder(ctx, r); err != nil {
		s.log.WithError(err).WithField("reminder", r.ID).Warn("calendar publish failed")
	}
}

// FormatUpcoming renders upcoming occurrences as an HTML list.
func (s *ReminderService) FormatUpcoming(items []UpcomingItem, limit int) string {
	if len(items) == 0 {
		return "Нет ближайших напоминаний"
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var sb strings.Builder
	for _, it := range items {
		at := it.At.In(s.enum.Location())
		sb.WriteString(fmt.Sprintf("%s %s <b>%s</b>\n", kindEmoji(it.Reminder.Kind), at.Format("02.01 15:04"), it.Reminder.Title))
	}
	return sb.String()
}

func kindEmoji(kind domain.ReminderKind) string {
	switch kind {
	case domain.KindMedication:
		return "💊"
	case domain.KindCustom:
		return "📌"
	default:
		return "🔔"
	}
}
