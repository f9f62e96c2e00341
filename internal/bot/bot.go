package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/config"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/service"
)

type Bot struct {
	api             *tgbotapi.BotAPI
	cfg             *config.Config
	reminderService *service.ReminderService
	birthdayService *service.BirthdayService
	cycleService    *service.CycleService
	calendarService *service.CalendarService
	log             *logrus.Entry
	ctx             context.Context
}

func New(cfg *config.Config, reminderSvc *service.ReminderService, birthdaySvc *service.BirthdayService, cycleSvc *service.CycleService, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	bot := &Bot{
		api:             api,
		cfg:             cfg,
		reminderService: reminderSvc,
		birthdayService: birthdaySvc,
		cycleService:    cycleSvc,
		log:             logger.WithField("component", "bot"),
		ctx:             context.Background(),
	}
	bot.log.WithField("username", api.Self.UserName).Info("authorized")

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) SetCalendar(c *service.CalendarService) {
	b.calendarService = c
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "upcoming", Description: "🔔 Ближайшие напоминания"},
		{Command: "reminders", Description: "📋 Все напоминания"},
		{Command: "remind", Description: "➕ Новое напоминание"},
		{Command: "birthdays", Description: "🎂 Дни рождения"},
		{Command: "cycle", Description: "🌸 Цикл"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		b.log.WithError(err).Warn("failed to set commands")
	}
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// Deliver sends a fired trigger to every recipient.
func (b *Bot) Deliver(n planner.Notification) error {
	text := formatNotification(n)
	var errs []error
	for _, chatID := range b.cfg.Recipients() {
		if err := b.SendMessage(chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func formatNotification(n planner.Notification) string {
	emoji := "🔔"
	switch n.Payload["type"] {
	case "medication":
		emoji = "💊"
	case "custom":
		emoji = "📌"
	case "birthday":
		emoji = "🎂"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>", emoji, html.EscapeString(n.Title)))
	if n.Body != "" {
		sb.WriteString("\n\n" + html.EscapeString(n.Body))
	}
	return sb.String()
}
