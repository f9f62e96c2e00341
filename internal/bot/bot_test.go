package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
)

func TestParseReminderArgs(t *testing.T) {
	in, err := parseReminderArgs(domain.KindMedication, "21:00,09:00 Витамин D")
	require.NoError(t, err)
	assert.Equal(t, domain.KindMedication, in.Kind)
	assert.Equal(t, "Витамин D", in.Title)
	assert.Equal(t, domain.RuleDaily, in.Rule.Kind())
	assert.Equal(t, []domain.TimeOfDay{{Hour: 21}, {Hour: 9}}, in.Times)

	in, err = parseReminderArgs(domain.KindReminder, "пн,ПТ 18:30 Спортзал")
	require.NoError(t, err)
	weekly, ok := in.Rule.(domain.WeeklyRule)
	require.True(t, ok)
	assert.Equal(t, []domain.Weekday{domain.Monday, domain.Friday}, weekly.Days())

	in, err = parseReminderArgs(domain.KindReminder, "3д 10:00 Полить цветы")
	require.NoError(t, err)
	interval, ok := in.Rule.(domain.IntervalRule)
	require.True(t, ok)
	assert.Equal(t, 3, interval.Every())
	assert.True(t, interval.Anchor().IsZero())

	in, err = parseReminderArgs(domain.KindCustom, "08.03.2025,09.05.2025 10:00 Праздник")
	require.NoError(t, err)
	dates, ok := in.Rule.(domain.SpecificDatesRule)
	require.True(t, ok)
	assert.Equal(t, []domain.Date{domain.NewDate(2025, 3, 8), domain.NewDate(2025, 5, 9)}, dates.Dates())
}

func TestParseReminderArgs_Errors(t *testing.T) {
	for _, args := range []string{
		"",
		"09:00",
		"пн 09:00",
		"потом 09:00 Текст",
		"0д 09:00 Текст",
		"31.02.2025 09:00 Текст",
		"25:00 Текст",
	} {
		_, err := parseReminderArgs(domain.KindReminder, args)
		assert.Error(t, err, args)
	}
}

func TestParsePeriodArgs(t *testing.T) {
	today := domain.NewDate(2024, 3, 1)

	start, length, err := parsePeriodArgs("", today)
	require.NoError(t, err)
	assert.Equal(t, today, start)
	assert.Nil(t, length)

	start, length, err = parsePeriodArgs("25.02.2024 5", today)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 2, 25), start)
	require.NotNil(t, length)
	assert.Equal(t, 5, *length)

	_, _, err = parsePeriodArgs("вчера", today)
	assert.Error(t, err)
}

func TestFormatNotification(t *testing.T) {
	text := formatNotification(planner.Notification{
		Title:   "Сегодня день рождения <Ани>!",
		Body:    "Не забудь",
		Payload: map[string]string{"type": "birthday"},
	})
	assert.Equal(t, "🎂 <b>Сегодня день рождения &lt;Ани&gt;!</b>\n\nНе забудь", text)

	assert.Equal(t, "💊 <b>Витамины</b>", formatNotification(planner.Notification{
		Title:   "Витамины",
		Payload: map[string]string{"type": "medication"},
	}))
	assert.Equal(t, "🔔 <b>X</b>", formatNotification(planner.Notification{Title: "X"}))
}

func TestKeyboards(t *testing.T) {
	assert.Nil(t, reminderListKeyboard(nil))

	r := domain.Reminder{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Kind: domain.KindMedication, Title: "Витамины"}
	kb := reminderListKeyboard([]domain.Reminder{r})
	require.NotNil(t, kb)
	data := *kb.InlineKeyboard[0][0].CallbackData
	assert.LessOrEqual(t, len(data), 64)

	prefix, args := parseCallback(data)
	assert.Equal(t, cbDeleteReminder, prefix)
	assert.Equal(t, []string{"medication", r.ID}, args)

	bd := domain.Birthday{ID: "b1", Name: "Аня", Date: domain.MonthDay{Month: time.March, Day: 15}}
	kb = birthdayListKeyboard([]domain.Birthday{bd})
	require.NotNil(t, kb)
	assert.Equal(t, "🗑 Аня (15.03)", kb.InlineKeyboard[0][0].Text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Аня", truncate("Аня", 5))
	assert.Equal(t, "абв…", truncate("абвгде", 4))
}

func TestUserError(t *testing.T) {
	assert.Equal(t, "Не найдено", userError(fmt.Errorf("x: %w", domain.ErrNotFound)))
	assert.Equal(t, "boom", userError(fmt.Errorf("boom")))
}
