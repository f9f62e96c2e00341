package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/familyreminders/internal/domain"
)

// Callback data prefixes. Payloads are "prefix:kind:id" for reminders and
// "prefix:id" for birthdays, within Telegram's 64-byte limit.
const (
	cbDeleteReminder = "delrem"
	cbDeleteBirthday = "delbd"
)

// reminderListKeyboard has one delete button per reminder.
func reminderListKeyboard(reminders []domain.Reminder) *tgbotapi.InlineKeyboardMarkup {
	if len(reminders) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range reminders {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"🗑 "+truncate(r.Title, 30),
				fmt.Sprintf("%s:%s:%s", cbDeleteReminder, r.Kind, r.ID),
			),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func birthdayListKeyboard(birthdays []domain.Birthday) *tgbotapi.InlineKeyboardMarkup {
	if len(birthdays) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range birthdays {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %s (%s)", truncate(b.Name, 25), b.Date),
				cbDeleteBirthday+":"+b.ID,
			),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// parseCallback splits callback data into its prefix and arguments.
func parseCallback(data string) (string, []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
