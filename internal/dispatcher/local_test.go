package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
)

type chanSender chan planner.Notification

func (c chanSender) Deliver(n planner.Notification) error {
	c <- n
	return nil
}

func newTestLocal(sender Sender, opts ...LocalOption) *Local {
	logger, _ := test.NewNullLogger()
	return NewLocal(time.UTC, sender, append([]LocalOption{WithLogger(logger)}, opts...)...)
}

func TestCronSpec(t *testing.T) {
	sunday := domain.Sunday
	monday := domain.Monday
	bad := domain.Weekday(9)

	tests := []struct {
		name    string
		repeat  planner.Repeat
		want    string
		wantErr bool
	}{
		{"daily", planner.Repeat{Hour: 8, Minute: 30}, "30 8 * * *", false},
		{"sunday", planner.Repeat{Hour: 21, Minute: 0, Weekday: &sunday}, "0 21 * * 0", false},
		{"monday", planner.Repeat{Hour: 7, Minute: 5, Weekday: &monday}, "5 7 * * 1", false},
		{"bad hour", planner.Repeat{Hour: 24}, "", true},
		{"bad weekday", planner.Repeat{Hour: 9, Weekday: &bad}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CronSpec(tt.repeat)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocal_RejectsPastOneShot(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLocal(nil, WithClock(func() time.Time { return now }))

	_, err := l.ScheduleOneShot(context.Background(), planner.Notification{Title: "x"}, now)
	assert.ErrorIs(t, err, domain.ErrPastTriggerRejected)
	_, err = l.ScheduleOneShot(context.Background(), planner.Notification{Title: "x"}, now.Add(-time.Minute))
	assert.ErrorIs(t, err, domain.ErrPastTriggerRejected)
	assert.Equal(t, 0, l.Pending())
}

func TestLocal_OneShotFires(t *testing.T) {
	sent := make(chanSender, 1)
	l := newTestLocal(sent)
	defer l.Stop()

	id, err := l.ScheduleOneShot(context.Background(), planner.Notification{Title: "Таблетка"}, time.Now().Add(20*time.Millisecond))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case n := <-sent:
		assert.Equal(t, "Таблетка", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot trigger did not fire")
	}
	assert.Eventually(t, func() bool { return l.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLocal_CancelledOneShotDoesNotFire(t *testing.T) {
	sent := make(chanSender, 1)
	l := newTestLocal(sent)
	defer l.Stop()

	id, err := l.ScheduleOneShot(context.Background(), planner.Notification{Title: "x"}, time.Now().Add(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, l.Cancel(context.Background(), id))
	require.NoError(t, l.Cancel(context.Background(), id), "cancel is idempotent")

	select {
	case <-sent:
		t.Fatal("cancelled trigger fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLocal_Repeating(t *testing.T) {
	l := newTestLocal(nil)
	friday := domain.Friday

	id, err := l.ScheduleRepeating(context.Background(), planner.Notification{Title: "Уборка"}, planner.Repeat{Hour: 10, Minute: 0, Weekday: &friday})
	require.NoError(t, err)
	require.Equal(t, 1, l.Pending())

	entry := l.cron.Entry(l.entries[id])
	next := entry.Schedule.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), next)

	require.NoError(t, l.CancelAll(context.Background(), []string{id, "unknown"}))
	assert.Equal(t, 0, l.Pending())
	assert.Empty(t, l.cron.Entries())
}

func TestLocal_CancelledContext(t *testing.T) {
	l := newTestLocal(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.ScheduleRepeating(ctx, planner.Notification{}, planner.Repeat{Hour: 9})
	assert.ErrorIs(t, err, context.Canceled)
}
