package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
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

// DefaultNotifyDaysBefore is used when the user does not pick a value.
const DefaultNotifyDaysBefore = 3

type BirthdayService struct {
	repo     *repository.Repository
	planner  *planner.Planner
	enum     *recurrence.Enumerator
	calendar *CalendarService
	now      func() time.Time
	log      *logrus.Entry
}

func NewBirthdayService(repo *repository.Repository, p *planner.Planner, enum *recurrence.Enumerator, logger *logrus.Logger) *BirthdayService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BirthdayService{
		repo:    repo,
		planner: p,
		enum:    enum,
		now:     time.Now,
		log:     logger.WithField("component", "birthdays"),
	}
}

func (s *BirthdayService) SetCalendar(c *CalendarService) {
	s.calendar = c
}

// Create adds a birthday and schedules its three notifications.
func (s *BirthdayService) Create(ctx context.Context, name string, date domain.MonthDay, birthYear, daysBefore int, notes string) (*domain.Birthday, error) {
	name = strings.TrimSpace(name)
	existing, err := s.repo.Birthdays()
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if strings.EqualFold(b.Name, name) && b.Date == date {
			return nil, errors.New("такой день рождения уже есть")
		}
	}

	b := &domain.Birthday{
		ID:               uuid.NewString(),
		Name:             name,
		Date:             date,
		BirthYear:        birthYear,
		NotifyDaysBefore: daysBefore,
		Notes:            strings.TrimSpace(notes),
		CreatedAt:        s.now(),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	_, schedErr := s.planner.ScheduleBirthday(ctx, b, s.now())
	if err := s.repo.SaveBirthday(*b); err != nil {
		return b, err
	}
	s.publish(ctx, b)
	return b, schedErr
}

// Update replaces the editable fields and reschedules.
func (s *BirthdayService) Update(ctx context.Context, id, name string, date domain.MonthDay, birthYear, daysBefore int, notes string) (*domain.Birthday, error) {
	found, err := s.repo.Birthday(id)
	if err != nil {
		return nil, err
	}
	b, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("день рождения %s: %w", id, domain.ErrNotFound)
	}
	b.Name = strings.TrimSpace(name)
	b.Date = date
	b.BirthYear = birthYear
	b.NotifyDaysBefore = daysBefore
	b.Notes = strings.TrimSpace(notes)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	prev := b.TriggerIDs
	_, schedErr := s.planner.ScheduleBirthday(ctx, &b, s.now())

	var stale []string
	err = s.repo.UpdateBirthday(id, func(cur *domain.Birthday) error {
		if !slices.Equal(cur.TriggerIDs, prev) {
			stale = cur.TriggerIDs
		}
		*cur = b
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		if cerr := s.planner.Cancel(ctx, b.TriggerIDs); cerr != nil {
			s.log.WithError(cerr).WithField("birthday", id).Warn("cancel triggers")
		}
		return nil, err
	}
	if cerr := s.planner.Cancel(ctx, stale); cerr != nil {
		s.log.WithError(cerr).WithField("birthday", id).Warn("cancel stale triggers")
	}
	if err != nil {
		return &b, err
	}
	s.publish(ctx, &b)
	return &b, schedErr
}

func (s *BirthdayService) publish(ctx context.Context, b *domain.Birthday) {
	if s.calendar == nil {
		return
	}
	if err := s.calendar.PublishBirthday(ctx, b); err != nil {
		s.log.WithError(err).WithField("birthday", b.ID).Warn("calendar publish failed")
	}
}

// Delete removes a birthday and cancels its notifications.
func (s *BirthdayService) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteBirthday(id)
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return err
	}
	if cerr := s.planner.Cancel(ctx, removed.TriggerIDs); cerr != nil {
		s.log.WithError(cerr).WithField("birthday", id).Warn("cancel triggers")
	}
	if s.calendar != nil {
		s.calendar.Unpublish(ctx, BirthdayUID(removed.ID))
	}
	return err
}

func (s *BirthdayService) Get(id string) (mo.Option[domain.Birthday], error) {
	return s.repo.Birthday(id)
}

// List returns birthdays ordered by month and day
func (s *BirthdayService) List() ([]domain.Birthday, error) {
	return s.repo.Birthdays()
}

// UpcomingBirthday is a birthday with its next date resolved.
type UpcomingBirthday struct {
	Birthday  domain.Birthday
	Date      domain.Date
	DaysUntil int
	Age       int // 0 if the birth year is unknown
}

// Upcoming returns birthdays falling within the next days days (today
// included), soonest first.
func (s *BirthdayService) Upcoming(now time.Time, days int) ([]UpcomingBirthday, error) {
	list, err := s.repo.Birthdays()
	if err != nil {
		return nil, err
	}
	today := s.enum.Today(now)
	var out []UpcomingBirthday
	for _, b := range list {
		n := b.DaysUntil(today)
		if n >= days {
			continue
		}
		out = append(out, UpcomingBirthday{
			Birthday:  b,
			Date:      b.NextOccurrence(today),
			DaysUntil: n,
			Age:       b.AgeAt(today),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntil < out[j].DaysUntil })
	return out, nil
}

// RescheduleAll re-plans every birthday. Run daily so the next year's
// triggers appear once a birthday has passed.
func (s *BirthdayService) RescheduleAll(ctx context.Context, now time.Time) (planner.Report, error) {
	list, err := s.repo.Birthdays()
	if err != nil {
		return planner.Report{}, err
	}
	var total planner.Report
	for i := range list {
		b := &list[i]
		prev := b.TriggerIDs
		report, err := s.planner.ScheduleBirthday(ctx, b, now)
		if !addReport(&total, b.ID, report, err) {
			continue
		}
		if err := s.commitTriggers(ctx, b, prev); err != nil {
			total.Errors = append(total.Errors, err)
		}
	}
	return total, total.Err()
}

// commitTriggers stores the rebuilt trigger ids of b unless the stored
// birthday changed since prev was read; otherwise the rebuilt triggers are
// cancelled.
func (s *BirthdayService) commitTriggers(ctx context.Context, b *domain.Birthday, prev []string) error {
	fresh := b.TriggerIDs
	err := s.repo.UpdateBirthday(b.ID, func(cur *domain.Birthday) error {
		if !slices.Equal(cur.TriggerIDs, prev) {
			return errRescheduled
		}
		cur.TriggerIDs = fresh
		return nil
	})
	if err == nil || errors.Is(err, domain.ErrPersistence) {
		return err
	}

	s.log.WithError(err).WithField("birthday", b.ID).Debug("dropping rebuilt triggers")
	if cerr := s.planner.Cancel(ctx, fresh); cerr != nil {
		return fmt.Errorf("cancel rebuilt triggers of %s: %w", b.ID, cerr)
	}
	return nil
}

var birthdayPattern = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})(?:[./](\d{4}))?$`)

// ParseBirthday parses DD.MM.YYYY, DD.MM, DD/MM/YYYY or DD/MM. The year is
// 0 when omitted.
func ParseBirthday(str string) (domain.MonthDay, int, error) {
	m := birthdayPattern.FindStringSubmatch(strings.TrimSpace(str))
	if m == nil {
		return domain.MonthDay{}, 0, fmt.Errorf("неверный формат даты: %q (ожидается ДД.ММ или ДД.ММ.ГГГГ)", str)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	md := domain.MonthDay{Month: time.Month(month), Day: day}
	if !md.Valid() {
		return domain.MonthDay{}, 0, fmt.Errorf("такой даты не бывает: %s", str)
	}
	year := 0
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	return md, year, nil
}

// FormatUpcoming formats upcoming birthdays for display
func (s *BirthdayService) FormatUpcoming(list []UpcomingBirthday) string {
	if len(list) == 0 {
		return "Ближайших дней рождения нет"
	}

	var sb strings.Builder
	for _, u := range list {
		sb.WriteString(fmt.Sprintf("🎂 <b>%s</b>", u.Birthday.Name))
		if u.Age > 0 {
			sb.WriteString(fmt.Sprintf(" — %d лет", u.Age))
		}
		sb.WriteString(fmt.Sprintf("\n   %s", u.Birthday.Date))

		switch u.DaysUntil {
		case 0:
			sb.WriteString(" — <b>СЕГОДНЯ!</b>")
		case 1:
			sb.WriteString(" — завтра")
		default:
			sb.WriteString(fmt.Sprintf(" — через %d дн.", u.DaysUntil))
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}
