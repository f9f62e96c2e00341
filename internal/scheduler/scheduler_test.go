package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/familyreminders/config"
	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/service"
)

type fakeReminders struct {
	mu    sync.Mutex
	calls []bool
	items []service.UpcomingItem
}

func (f *fakeReminders) Rematerialize(_ context.Context, _ time.Time, all bool) (planner.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, all)
	return planner.Report{Scheduled: 1}, nil
}

func (f *fakeReminders) Upcoming(time.Time) ([]service.UpcomingItem, error) {
	return f.items, nil
}

func (f *fakeReminders) FormatUpcoming(items []service.UpcomingItem, _ int) string {
	var titles []string
	for _, it := range items {
		titles = append(titles, it.Reminder.Title)
	}
	return strings.Join(titles, ",") + "\n"
}

type fakeBirthdays struct {
	rescheduled int
	list        []service.UpcomingBirthday
	err         error
}

func (f *fakeBirthdays) RescheduleAll(context.Context, time.Time) (planner.Report, error) {
	f.rescheduled++
	return planner.Report{}, f.err
}

func (f *fakeBirthdays) Upcoming(time.Time, int) ([]service.UpcomingBirthday, error) {
	return f.list, nil
}

func (f *fakeBirthdays) FormatUpcoming(list []service.UpcomingBirthday) string {
	return fmt.Sprintf("%d birthdays", len(list))
}

type fakeCalendar struct{ configured bool }

func (f fakeCalendar) IsConfigured() bool { return f.configured }

func (f fakeCalendar) Sync(context.Context) (*service.SyncResult, error) {
	return &service.SyncResult{}, nil
}

type fakeSender struct {
	sent map[int64]string
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	if f.sent == nil {
		f.sent = map[int64]string{}
	}
	f.sent[chatID] = text
	return nil
}

var now = time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)

func newScheduler(r *fakeReminders, b *fakeBirthdays) *Scheduler {
	cfg := &config.Config{
		Timezone:          time.UTC,
		OwnerTelegramID:   1,
		PartnerTelegramID: 2,
		Engine:            config.DefaultEngineConfig(),
	}
	logger, _ := test.NewNullLogger()
	s := New(cfg, r, b, logger)
	s.now = func() time.Time { return now }
	return s
}

func TestStart_RegistersJobsAndReschedulesAll(t *testing.T) {
	r := &fakeReminders{}
	b := &fakeBirthdays{err: errors.New("partial")}
	s := newScheduler(r, b)
	s.SetCalendar(fakeCalendar{configured: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 3)
	assert.Equal(t, []bool{true}, r.calls, "startup reschedules every reminder")
	assert.Equal(t, 1, b.rescheduled)
}

func TestStart_SkipsCalendarWhenNotConfigured(t *testing.T) {
	s := newScheduler(&fakeReminders{}, &fakeBirthdays{})
	s.SetCalendar(fakeCalendar{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 2)
}

func TestStart_InvalidSpec(t *testing.T) {
	s := newScheduler(&fakeReminders{}, &fakeBirthdays{})
	s.cfg.Engine.Schedules.Digest = "not a spec"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Start(ctx))
}

func TestDigest(t *testing.T) {
	r := &fakeReminders{items: []service.UpcomingItem{
		{Reminder: domain.Reminder{Title: "Витамины"}, At: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		{Reminder: domain.Reminder{Title: "Полив"}, At: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
	}}
	b := &fakeBirthdays{list: []service.UpcomingBirthday{{Birthday: domain.Birthday{Name: "Аня"}}}}
	s := newScheduler(r, b)
	sender := &fakeSender{}
	s.SetSender(sender)

	s.digest()

	require.Len(t, sender.sent, 2)
	text := sender.sent[2]
	assert.Contains(t, text, "Сегодня 1 напоминаний")
	assert.Contains(t, text, "Витамины")
	assert.NotContains(t, text, "Полив")
	assert.Contains(t, text, "1 birthdays")
}

func TestDigest_Empty(t *testing.T) {
	s := newScheduler(&fakeReminders{}, &fakeBirthdays{})
	text, err := s.digestText(now)
	require.NoError(t, err)
	assert.Contains(t, text, "На сегодня напоминаний нет")
	assert.NotContains(t, text, "Дни рождения")
}
