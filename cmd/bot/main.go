package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tazhate/familyreminders/config"
	"github.com/tazhate/familyreminders/internal/bot"
	"github.com/tazhate/familyreminders/internal/clients/caldav"
	"github.com/tazhate/familyreminders/internal/dispatcher"
	"github.com/tazhate/familyreminders/internal/logger"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/recurrence"
	"github.com/tazhate/familyreminders/internal/repository"
	"github.com/tazhate/familyreminders/internal/scheduler"
	"github.com/tazhate/familyreminders/internal/service"
	"github.com/tazhate/familyreminders/internal/storage"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load config")
	}
	log := logger.Init(cfg.LogLevel, cfg.Environment)

	// Инициализация storage
	var store *storage.Storage
	if cfg.DatabaseDriver == storage.DriverSQLite {
		store, err = storage.New(cfg.DatabasePath)
	} else {
		store, err = storage.Open(cfg.DatabaseDriver, cfg.DSN())
	}
	if err != nil {
		log.WithError(err).Fatal("failed to init storage")
	}
	defer store.Close()
	repo := repository.New(store, log)

	// Движок планирования
	enum := recurrence.NewEnumerator(cfg.Engine.Horizons, cfg.Timezone)
	disp := dispatcher.NewLocal(cfg.Timezone, nil, dispatcher.WithLogger(log))
	plan := planner.New(disp, enum,
		planner.WithRetryPolicy(cfg.Engine.Retry),
		planner.WithBirthdayTimes(cfg.Engine.Birthday),
		planner.WithLogger(log),
	)

	// Инициализация сервисов
	reminderSvc := service.NewReminderService(repo, plan, enum, log)
	birthdaySvc := service.NewBirthdayService(repo, plan, enum, log)
	cycleSvc := service.NewCycleService(repo, enum, log)

	var calendarSvc *service.CalendarService
	if cfg.CalDAVEnabled() {
		client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		if cfg.CalDAVCalendar != "" {
			client.SetCalendarPath(cfg.CalDAVCalendar)
		}
		calendarSvc = service.NewCalendarService(repo, client, enum, log)
		reminderSvc.SetCalendar(calendarSvc)
		birthdaySvc.SetCalendar(calendarSvc)
	}

	// Инициализация бота
	tgBot, err := bot.New(cfg, reminderSvc, birthdaySvc, cycleSvc, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init bot")
	}
	tgBot.SetCalendar(calendarSvc)
	disp.SetSender(tgBot)
	disp.Start()

	// Инициализация scheduler
	sched := scheduler.New(cfg, reminderSvc, birthdaySvc, log)
	sched.SetSender(tgBot)
	if calendarSvc != nil {
		sched.SetCalendar(calendarSvc)
	}

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Горизонты применяются на лету, остальное после перезапуска
	if cfg.EngineConfigPath != "" {
		watcher := config.NewEngineWatcher(cfg.EngineConfigPath, cfg.Engine, log)
		watcher.OnChange(func(engine config.EngineConfig) {
			enum.SetHorizons(engine.Horizons)
		})
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				log.WithError(err).Warn("engine config watcher stopped")
			}
		}()
	}

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.WithError(err).Error("scheduler error")
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.WithError(err).Error("bot error")
		}
	}()

	log.Info("FamilyReminders started")

	// Ожидание сигнала завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	cancel()
	sched.Stop()
	tgBot.Stop()
	disp.Stop()

	log.Info("FamilyReminders stopped")
}
