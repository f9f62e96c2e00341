package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/familyreminders/internal/clients/caldav"
	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/recurrence"
	"github.com/tazhate/familyreminders/internal/repository"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
}

func (m *memStore) Get(key string) (mo.Option[[]byte], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return mo.Some(v), nil
	}
	return mo.None[[]byte](), nil
}

func (m *memStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("read-only filesystem")
	}
	m.data[key] = value
	return nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	seq    int
	active map[string]time.Time // zero time for repeating

	onOneShot  func() // runs once, before the next one-shot is scheduled
	failCancel bool
}

func (f *fakeDispatcher) ScheduleOneShot(_ context.Context, _ planner.Notification, at time.Time) (string, error) {
	f.mu.Lock()
	hook := f.onOneShot
	f.onOneShot = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("t%d", f.seq)
	f.active[id] = at
	return id, nil
}

func (f *fakeDispatcher) ScheduleRepeating(_ context.Context, _ planner.Notification, _ planner.Repeat) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("t%d", f.seq)
	f.active[id] = time.Time{}
	return id, nil
}

func (f *fakeDispatcher) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, id)
	return nil
}

func (f *fakeDispatcher) CancelAll(ctx context.Context, ids []string) error {
	f.mu.Lock()
	fail := f.failCancel
	f.mu.Unlock()
	if fail {
		return errors.New("dispatcher unavailable")
	}
	for _, id := range ids {
		_ = f.Cancel(ctx, id)
	}
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

type fakeCalendar struct {
	mu     sync.Mutex
	events map[string]caldav.Event
}

func (c *fakeCalendar) IsConfigured() bool { return true }

func (c *fakeCalendar) PutEvent(_ context.Context, ev *caldav.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[ev.UID] = *ev
	return nil
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, uid)
	return nil
}

func (c *fakeCalendar) ListEventUIDs(_ context.Context, suffix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for uid := range c.events {
		if strings.HasSuffix(uid, suffix) {
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out, nil
}

type env struct {
	now       time.Time
	store     *memStore
	disp      *fakeDispatcher
	cal       *fakeCalendar
	repo      *repository.Repository
	reminders *ReminderService
	birthdays *BirthdayService
	cycles    *CycleService
	calendar  *CalendarService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := &env{
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		store: &memStore{data: map[string][]byte{}},
		disp:  &fakeDispatcher{active: map[string]time.Time{}},
		cal:   &fakeCalendar{events: map[string]caldav.Event{}},
	}
	enum := recurrence.NewEnumerator(recurrence.DefaultHorizons, time.UTC)
	fast := planner.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, RatePerSec: 1000}
	p := planner.New(e.disp, enum, planner.WithRetryPolicy(fast), planner.WithLogger(logger))
	clock := func() time.Time { return e.now }

	e.repo = repository.New(e.store, logger)
	e.calendar = NewCalendarService(e.repo, e.cal, enum, logger)
	e.calendar.now = clock
	e.reminders = NewReminderService(e.repo, p, enum, logger)
	e.reminders.now = clock
	e.reminders.SetCalendar(e.calendar)
	e.birthdays = NewBirthdayService(e.repo, p, enum, logger)
	e.birthdays.now = clock
	e.birthdays.SetCalendar(e.calendar)
	e.cycles = NewCycleService(e.repo, enum, logger)
	return e
}

func everyThreeDays(t *testing.T) domain.Rule {
	t.Helper()
	r, err := domain.NewIntervalRule(3, domain.Date{})
	require.NoError(t, err)
	return r
}

func TestReminderService_CreateSchedulesAndPersists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{
		Kind:  domain.KindReminder,
		Title: "  Полить цветы ",
		Times: []domain.TimeOfDay{{Hour: 10}},
		Rule:  everyThreeDays(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "Полить цветы", r.Title)

	rule := r.Rule.(domain.IntervalRule)
	assert.Equal(t, domain.NewDate(2024, 3, 1), rule.Anchor(), "anchored at creation day")

	// 20 dates in 60 days, today's 10:00 already passed.
	assert.Len(t, r.TriggerIDs, 19)
	assert.Equal(t, 19, e.disp.count())

	stored, err := e.reminders.Get(domain.KindReminder, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.TriggerIDs, stored.MustGet().TriggerIDs)

	assert.Contains(t, e.cal.events, reminderUID(r.ID, domain.TimeOfDay{Hour: 10}))
}

func TestReminderService_UpdateReplacesTriggers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{
		Kind:  domain.KindMedication,
		Title: "Железо",
		Times: []domain.TimeOfDay{{Hour: 8}, {Hour: 20}},
		Rule:  domain.DailyRule{},
	})
	require.NoError(t, err)
	require.Equal(t, 2, e.disp.count())
	require.Len(t, e.cal.events, 2)

	updated, err := e.reminders.Update(ctx, domain.KindMedication, r.ID, ReminderInput{
		Title: "Железо",
		Times: []domain.TimeOfDay{{Hour: 9}},
		Rule:  domain.DailyRule{},
	})
	require.NoError(t, err)
	assert.Len(t, updated.TriggerIDs, 1)
	assert.Equal(t, 1, e.disp.count(), "old triggers cancelled")
	assert.Len(t, e.cal.events, 1, "old calendar events pruned")

	_, err = e.reminders.Update(ctx, domain.KindMedication, "missing", ReminderInput{Title: "x", Times: []domain.TimeOfDay{{Hour: 9}}, Rule: domain.DailyRule{}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReminderService_Delete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Мусор", Times: []domain.TimeOfDay{{Hour: 21}}, Rule: domain.DailyRule{}})
	require.NoError(t, err)

	require.NoError(t, e.reminders.Delete(ctx, domain.KindReminder, r.ID))
	assert.Equal(t, 0, e.disp.count())
	assert.Empty(t, e.cal.events)
	assert.ErrorIs(t, e.reminders.Delete(ctx, domain.KindReminder, r.ID), domain.ErrNotFound)
}

func TestReminderService_CustomLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < domain.MaxCustomReminders; i++ {
		_, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindCustom, Title: fmt.Sprintf("r%d", i), Times: []domain.TimeOfDay{{Hour: 9}}, Rule: domain.DailyRule{}})
		require.NoError(t, err)
	}
	before := e.disp.count()

	_, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindCustom, Title: "лишнее", Times: []domain.TimeOfDay{{Hour: 9}}, Rule: domain.DailyRule{}})
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
	assert.Equal(t, before, e.disp.count(), "nothing scheduled over the limit")

	// Other kinds are not capped.
	_, err = e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "обычное", Times: []domain.TimeOfDay{{Hour: 9}}, Rule: domain.DailyRule{}})
	assert.NoError(t, err)
}

func TestReminderService_PersistenceFailureKeepsReminder(t *testing.T) {
	e := newEnv(t)
	e.store.failSet = true

	r, err := e.reminders.Create(context.Background(), ReminderInput{Kind: domain.KindReminder, Title: "x", Times: []domain.TimeOfDay{{Hour: 9}}, Rule: domain.DailyRule{}})
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.NotNil(t, r)

	list, err := e.reminders.List(domain.KindReminder)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReminderService_InvalidInput(t *testing.T) {
	e := newEnv(t)
	_, err := e.reminders.Create(context.Background(), ReminderInput{Title: "x", Times: []domain.TimeOfDay{{Hour: 9}}})
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrenceRule)

	_, err = e.reminders.Create(context.Background(), ReminderInput{Title: " ", Times: []domain.TimeOfDay{{Hour: 9}}, Rule: domain.DailyRule{}})
	assert.Error(t, err)
	assert.Equal(t, 0, e.disp.count())
}

func TestReminderService_UpcomingAndRematerialize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	weekly, err := domain.NewWeeklyRule(domain.Saturday)
	require.NoError(t, err)
	_, err = e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Уборка", Times: []domain.TimeOfDay{{Hour: 11}}, Rule: weekly})
	require.NoError(t, err)
	interval, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindMedication, Title: "Пластырь", Times: []domain.TimeOfDay{{Hour: 13}}, Rule: everyThreeDays(t)})
	require.NoError(t, err)

	items, err := e.reminders.Upcoming(e.now)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "Пластырь", items[0].Reminder.Title)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), items[0].At)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 0, 0, 0, time.UTC), items[1].At)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].At.Before(items[i-1].At))
	}
	assert.Contains(t, e.reminders.FormatUpcoming(items, 2), "<b>Пластырь</b>")

	next := e.reminders.NextOccurrence(interval, e.now)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), next.MustGet())

	// A week later the interval window is rebuilt; the weekly one is untouched.
	e.now = e.now.AddDate(0, 0, 7)
	count := e.disp.count()
	report, err := e.reminders.Rematerialize(ctx, e.now, false)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Scheduled)
	assert.Equal(t, count, e.disp.count(), "old interval triggers replaced")

	stored, err := e.reminders.Get(domain.KindMedication, interval.ID)
	require.NoError(t, err)
	assert.Len(t, stored.MustGet().TriggerIDs, 20)
}

func TestReminderService_UpdateKeepsIntervalAnchor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Полить цветы", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: everyThreeDays(t)})
	require.NoError(t, err)

	e.now = e.now.AddDate(0, 0, 2)
	updated, err := e.reminders.Update(ctx, domain.KindReminder, r.ID, ReminderInput{Title: "Полить фикус", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: everyThreeDays(t)})
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 3, 1), updated.Rule.(domain.IntervalRule).Anchor())

	// An explicit anchor still replaces the stored one.
	moved, err := domain.NewIntervalRule(3, domain.NewDate(2024, 3, 2))
	require.NoError(t, err)
	updated, err = e.reminders.Update(ctx, domain.KindReminder, r.ID, ReminderInput{Title: "Полить фикус", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: moved})
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 3, 2), updated.Rule.(domain.IntervalRule).Anchor())
}

func TestReminderService_RematerializeDropsDeletedReminder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Полить цветы", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: everyThreeDays(t)})
	require.NoError(t, err)

	e.now = e.now.AddDate(0, 0, 7)
	e.disp.onOneShot = func() {
		require.NoError(t, e.reminders.Delete(ctx, domain.KindReminder, r.ID))
	}

	_, err = e.reminders.Rematerialize(ctx, e.now, false)
	require.NoError(t, err)

	list, err := e.reminders.List(domain.KindReminder)
	require.NoError(t, err)
	assert.Empty(t, list, "deleted reminder is not written back")
	assert.Equal(t, 0, e.disp.count(), "rebuilt triggers are cancelled")
}

func TestReminderService_RematerializeKeepsConcurrentEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Полить цветы", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: everyThreeDays(t)})
	require.NoError(t, err)

	e.now = e.now.AddDate(0, 0, 7)
	e.disp.onOneShot = func() {
		_, err := e.reminders.Update(ctx, domain.KindReminder, r.ID, ReminderInput{Title: "Полить фикус", Times: []domain.TimeOfDay{{Hour: 9}}, Rule: everyThreeDays(t)})
		require.NoError(t, err)
	}

	_, err = e.reminders.Rematerialize(ctx, e.now, false)
	require.NoError(t, err)

	stored, err := e.reminders.Get(domain.KindReminder, r.ID)
	require.NoError(t, err)
	got := stored.MustGet()
	assert.Equal(t, "Полить фикус", got.Title)
	assert.Equal(t, []domain.TimeOfDay{{Hour: 9}}, got.Times)
	assert.NotEmpty(t, got.TriggerIDs)
	assert.Equal(t, len(got.TriggerIDs), e.disp.count(), "only the edit's triggers stay live")
}

func TestReminderService_RematerializeReportsCancelFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Полить цветы", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: everyThreeDays(t)})
	require.NoError(t, err)

	e.disp.failCancel = true
	report, err := e.reminders.Rematerialize(ctx, e.now.AddDate(0, 0, 7), false)
	require.Error(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Scheduled)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error(), r.ID)

	stored, err := e.reminders.Get(domain.KindReminder, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.TriggerIDs, stored.MustGet().TriggerIDs, "previous triggers stay recorded")
}

func TestBirthdayService_RescheduleAllConcurrency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.birthdays.Create(ctx, "Маша", domain.MonthDay{Month: time.March, Day: 15}, 1990, 3, "")
	require.NoError(t, err)

	e.disp.onOneShot = func() {
		require.NoError(t, e.birthdays.Delete(ctx, b.ID))
	}
	_, err = e.birthdays.RescheduleAll(ctx, e.now)
	require.NoError(t, err)

	list, err := e.birthdays.List()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, e.disp.count())

	_, err = e.birthdays.Create(ctx, "Петя", domain.MonthDay{Month: time.April, Day: 1}, 0, 3, "")
	require.NoError(t, err)
	e.disp.failCancel = true
	report, err := e.birthdays.RescheduleAll(ctx, e.now)
	require.Error(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestBirthdayService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	md, year, err := ParseBirthday("15.03.1990")
	require.NoError(t, err)
	b, err := e.birthdays.Create(ctx, "Маша", md, year, 3, "")
	require.NoError(t, err)
	assert.Len(t, b.TriggerIDs, 3)
	assert.Contains(t, e.cal.events, BirthdayUID(b.ID))

	_, err = e.birthdays.Create(ctx, "маша", md, 0, 3, "")
	assert.Error(t, err, "duplicate")

	leap, _, err := ParseBirthday("29.02")
	require.NoError(t, err)
	_, err = e.birthdays.Create(ctx, "Петя", leap, 0, 0, "")
	require.NoError(t, err)

	upcoming, err := e.birthdays.Upcoming(e.now, 30)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Маша", upcoming[0].Birthday.Name)
	assert.Equal(t, 14, upcoming[0].DaysUntil)
	assert.Equal(t, 34, upcoming[0].Age)
	assert.Contains(t, e.birthdays.FormatUpcoming(upcoming), "через 14 дн.")

	// After the birthday passes, rescheduling rolls to next year.
	e.now = time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	_, err = e.birthdays.RescheduleAll(ctx, e.now)
	require.NoError(t, err)
	stored, err := e.birthdays.Get(b.ID)
	require.NoError(t, err)
	assert.Len(t, stored.MustGet().TriggerIDs, 3)
	for _, id := range stored.MustGet().TriggerIDs {
		assert.Equal(t, 2025, e.disp.active[id].Year())
	}

	require.NoError(t, e.birthdays.Delete(ctx, b.ID))
	assert.NotContains(t, e.cal.events, BirthdayUID(b.ID))
}

func TestParseBirthday(t *testing.T) {
	tests := []struct {
		in      string
		md      domain.MonthDay
		year    int
		wantErr bool
	}{
		{"12.06.2017", domain.MonthDay{Month: time.June, Day: 12}, 2017, false},
		{"1/2", domain.MonthDay{Month: time.February, Day: 1}, 0, false},
		{"29.02", domain.MonthDay{Month: time.February, Day: 29}, 0, false},
		{"31.04", domain.MonthDay{}, 0, true},
		{"завтра", domain.MonthDay{}, 0, true},
	}
	for _, tt := range tests {
		md, year, err := ParseBirthday(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.md, md)
		assert.Equal(t, tt.year, year)
	}
}

func TestCycleService(t *testing.T) {
	e := newEnv(t)

	sum, err := e.cycles.Summary(e.now)
	require.NoError(t, err)
	assert.False(t, sum.HasData)
	assert.Contains(t, FormatSummary(sum), "Нет данных")

	five := 5
	first, err := e.cycles.LogPeriodStart(domain.NewDate(2024, 1, 4), &five)
	require.NoError(t, err)
	_, err = e.cycles.LogPeriodStart(domain.NewDate(2024, 2, 1), nil)
	require.NoError(t, err)

	_, err = e.cycles.LogPeriodStart(domain.NewDate(2024, 2, 1), nil)
	assert.Error(t, err, "duplicate start")

	h, err := e.cycles.History()
	require.NoError(t, err)
	require.Len(t, h.Records, 2)
	assert.Equal(t, 28, *h.Records[0].CycleLength)

	require.NoError(t, e.cycles.SetPeriodLength(h.Records[1].ID, 4))
	sum, err = e.cycles.Summary(e.now)
	require.NoError(t, err)
	assert.True(t, sum.HasData)
	assert.Equal(t, domain.NewDate(2024, 2, 29), sum.NextPeriod)
	assert.Equal(t, 5, sum.AveragePeriodLength, "mean of 5 and 4 rounds up")
	assert.Equal(t, domain.PhaseLate, sum.Phase.Kind)
	assert.Contains(t, FormatSummary(sum), "задержка")

	require.NoError(t, e.cycles.DeleteRecord(first.ID))
	assert.ErrorIs(t, e.cycles.DeleteRecord(first.ID), domain.ErrNotFound)
}

func TestCalendarService_Events(t *testing.T) {
	e := newEnv(t)

	weekly, err := domain.NewWeeklyRule(domain.Monday, domain.Thursday)
	require.NoError(t, err)
	r := &domain.Reminder{ID: "r1", Kind: domain.KindReminder, Title: "Бассейн", Rule: weekly, Times: []domain.TimeOfDay{{Hour: 18, Minute: 30}}}

	events, err := e.calendar.ReminderEvents(r, e.now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "reminder-r1-1830@familyreminders", events[0].UID)
	assert.Contains(t, events[0].RRule, "BYDAY=MO,TH")
	assert.Equal(t, time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC), events[0].Start)

	yearly := e.calendar.BirthdayEvent(&domain.Birthday{ID: "b1", Name: "Оля", Date: domain.MonthDay{Month: time.May, Day: 9}, NotifyDaysBefore: 2}, e.now)
	assert.True(t, yearly.AllDay)
	assert.Contains(t, yearly.RRule, "FREQ=YEARLY")
	assert.Equal(t, []time.Duration{0, 48 * time.Hour}, yearly.Alarms)

	leap := e.calendar.BirthdayEvent(&domain.Birthday{ID: "b2", Name: "Петя", Date: domain.MonthDay{Month: time.February, Day: 29}}, e.now)
	assert.Empty(t, leap.RRule)
	require.Len(t, leap.RDates, leapBirthdayYears)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), leap.RDates[0])
	assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), leap.RDates[3])
}

func TestCalendarService_SyncPrunesStale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.reminders.Create(ctx, ReminderInput{Kind: domain.KindReminder, Title: "Счётчики", Times: []domain.TimeOfDay{{Hour: 10}}, Rule: domain.DailyRule{}})
	require.NoError(t, err)
	e.cal.events["reminder-gone-0900"+uidSuffix] = caldav.Event{}
	e.cal.events["someone-else@icloud.com"] = caldav.Event{}

	result, err := e.calendar.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.Deleted)
	assert.Empty(t, result.Errors)
	assert.Contains(t, e.cal.events, "someone-else@icloud.com")
}
