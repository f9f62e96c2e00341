package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.From == nil || !b.cfg.IsAllowedUser(msg.From.ID) {
		b.SendMessage(chatID, "⛔ Доступ запрещён")
		return
	}
	if !msg.IsCommand() {
		b.SendMessage(chatID, "/help для списка команд")
		return
	}
	b.handleCommand(msg)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start", "help":
		b.cmdHelp(chatID)
	case "upcoming":
		b.cmdUpcoming(chatID)
	case "reminders":
		b.cmdReminders(chatID)
	case "remind":
		b.cmdRemind(chatID, domain.KindReminder, args)
	case "med":
		b.cmdRemind(chatID, domain.KindMedication, args)
	case "custom":
		b.cmdRemind(chatID, domain.KindCustom, args)
	case "birthdays":
		b.cmdBirthdays(chatID)
	case "addbirthday":
		b.cmdAddBirthday(chatID, args)
	case "period":
		b.cmdPeriod(chatID, args)
	case "cycle":
		b.cmdCycle(chatID)
	case "sync":
		b.cmdSync(chatID)
	default:
		b.SendMessage(chatID, "Неизвестная команда. /help для списка команд")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Команды:</b>

<b>Напоминания</b>
/upcoming — ближайшие
/reminders — список с удалением
/remind [правило] ЧЧ:ММ текст — напоминание
/med [правило] ЧЧ:ММ текст — лекарство
/custom [правило] ЧЧ:ММ текст — своё (до 10)

Правило: пусто — каждый день, <code>пн,ср,пт</code>, <code>3д</code> — раз в 3 дня, <code>08.03.2025</code> — даты

<b>Дни рождения</b>
/birthdays — список
/addbirthday ДД.ММ[.ГГГГ] Имя

<b>Цикл</b>
/period [ДД.ММ.ГГГГ] [дней] — начало месячных
/cycle — прогноз

/sync — синхронизировать календарь`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdUpcoming(chatID int64) {
	items, err := b.reminderService.Upcoming(time.Now())
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.SendMessage(chatID, "🔔 <b>Ближайшие напоминания</b>\n\n"+b.reminderService.FormatUpcoming(items, 15))
}

func (b *Bot) cmdReminders(chatID int64) {
	var all []domain.Reminder
	for _, kind := range []domain.ReminderKind{domain.KindReminder, domain.KindMedication, domain.KindCustom} {
		list, err := b.reminderService.List(kind)
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		all = append(all, list...)
	}
	if len(all) == 0 {
		b.SendMessage(chatID, "Напоминаний нет. /remind чтобы добавить")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Напоминания</b>\n\n")
	for _, r := range all {
		next := "—"
		if at, ok := b.reminderService.NextOccurrence(&r, time.Now()).Get(); ok {
			next = at.In(b.cfg.Timezone).Format("02.01 15:04")
		}
		sb.WriteString(fmt.Sprintf("<b>%s</b> (%s), следующее: %s\n", html.EscapeString(r.Title), r.Rule.Kind(), next))
	}
	b.SendMessageWithKeyboard(chatID, sb.String(), *reminderListKeyboard(all))
}

func (b *Bot) cmdRemind(chatID int64, kind domain.ReminderKind, args string) {
	in, err := parseReminderArgs(kind, args)
	if err != nil {
		b.SendMessage(chatID, "❌ "+err.Error()+"\n\nПример: <code>/remind пн,чт 09:00 Спортзал</code>")
		return
	}

	r, err := b.reminderService.Create(b.ctx, in)
	if err != nil && r == nil {
		b.replyError(chatID, err)
		return
	}

	text := fmt.Sprintf("✅ Напоминание <b>%s</b> создано", html.EscapeString(r.Title))
	if at, ok := b.reminderService.NextOccurrence(r, time.Now()).Get(); ok {
		text += "\nСледующее: " + at.In(b.cfg.Timezone).Format("02.01.2006 15:04")
	}
	if err != nil {
		text += "\n⚠️ " + userError(err)
	}
	b.SendMessage(chatID, text)
}

func (b *Bot) cmdBirthdays(chatID int64) {
	upcoming, err := b.birthdayService.Upcoming(time.Now(), 366)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	text := "🎂 <b>Дни рождения</b>\n\n" + b.birthdayService.FormatUpcoming(upcoming)

	list, err := b.birthdayService.List()
	if err != nil || len(list) == 0 {
		b.SendMessage(chatID, text)
		return
	}
	b.SendMessageWithKeyboard(chatID, text, *birthdayListKeyboard(list))
}

func (b *Bot) cmdAddBirthday(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.SendMessage(chatID, "Пример: <code>/addbirthday 15.03.1990 Мама</code>")
		return
	}
	date, year, err := service.ParseBirthday(fields[0])
	if err != nil {
		b.SendMessage(chatID, "❌ "+err.Error())
		return
	}

	bd, err := b.birthdayService.Create(b.ctx, strings.Join(fields[1:], " "), date, year, service.DefaultNotifyDaysBefore, "")
	if err != nil && bd == nil {
		b.replyError(chatID, err)
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("🎂 Добавлен день рождения <b>%s</b> (%s)", html.EscapeString(bd.Name), bd.Date))
}

func (b *Bot) cmdPeriod(chatID int64, args string) {
	today := domain.DateOf(time.Now().In(b.cfg.Timezone))
	start, length, err := parsePeriodArgs(args, today)
	if err != nil {
		b.SendMessage(chatID, "❌ "+err.Error())
		return
	}
	rec, err := b.cycleService.LogPeriodStart(start, length)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("🌸 Записано начало: %s\n\n/cycle — прогноз", rec.StartDate.Time().Format(userDateLayout)))
}

func (b *Bot) cmdCycle(chatID int64) {
	sum, err := b.cycleService.Summary(time.Now())
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.SendMessage(chatID, service.FormatSummary(sum))
}

func (b *Bot) cmdSync(chatID int64) {
	if !b.calendarService.IsConfigured() {
		b.SendMessage(chatID, "Календарь не настроен")
		return
	}
	res, err := b.calendarService.Sync(b.ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("📅 Опубликовано: %d, удалено: %d, ошибок: %d", res.Published, res.Deleted, len(res.Errors)))
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if !b.cfg.IsAllowedUser(callback.From.ID) {
		b.api.Request(tgbotapi.NewCallback(callback.ID, "⛔ Доступ запрещён"))
		return
	}

	prefix, args := parseCallback(callback.Data)
	var err error
	switch {
	case prefix == cbDeleteReminder && len(args) == 2:
		err = b.reminderService.Delete(b.ctx, domain.ReminderKind(args[0]), args[1])
	case prefix == cbDeleteBirthday && len(args) == 1:
		err = b.birthdayService.Delete(b.ctx, args[0])
	default:
		return
	}

	answer := "🗑 Удалено"
	if err != nil {
		b.log.WithError(err).WithField("data", callback.Data).Warn("callback failed")
		answer = "❌ " + userError(err)
	}
	b.api.Request(tgbotapi.NewCallback(callback.ID, answer))
}

func (b *Bot) replyError(chatID int64, err error) {
	b.log.WithError(err).Warn("command failed")
	b.SendMessage(chatID, "❌ "+userError(err))
}

// userError maps domain errors to short messages.
func userError(err error) string {
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		return fmt.Sprintf("Достигнут лимит (%d)", domain.MaxCustomReminders)
	case errors.Is(err, domain.ErrNotFound):
		return "Не найдено"
	case errors.Is(err, domain.ErrInvalidRecurrenceRule):
		return "Неверное правило повтора"
	case errors.Is(err, domain.ErrPersistence):
		return "Ошибка сохранения"
	default:
		return err.Error()
	}
}
