package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"training_bot/internal/app"
	"training_bot/internal/infra/config"
	idb "training_bot/internal/infra/database"
	applogger "training_bot/internal/infra/logger"
	"training_bot/internal/infra/scheduler"
	"training_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	applogger.Init(cfg)
	appLog := applogger.Get()
	appLog.WithField("environment", cfg.Environment).Info("Configuration loaded")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		appLog.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	appLog.Info("Database connection established")

	// Initialize Repositories
	broadcastRepo := idb.NewPostgresBroadcastRepository(db)
	trainingRepo := idb.NewPostgresTrainingRepository(db)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := appLog.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telebot handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		appLog.WithError(err).Fatal("Could not create Telegram bot")
	}

	telegramClient := telegram.NewTelebotAdapter(bot)

	if cfg.ChannelID > 0 {
		// Channel and supergroup IDs are negative; a positive one is almost
		// certainly a private chat pasted by mistake.
		appLog.WithField("channel_id", cfg.ChannelID).Warn("CHANNEL_ID is positive; this looks like a private chat, not a channel")
	}

	// Initialize Services
	broadcastService := app.NewBroadcastService(broadcastRepo, telegramClient, appLog, app.BroadcastConfig{
		ChannelID:          cfg.ChannelID,
		MessageThreadID:    cfg.MessageThreadID,
		DailyResendGuard:   cfg.DailyResendGuard,
		WeeklyResendGuard:  cfg.WeeklyResendGuard,
		MonthlyResendGuard: cfg.MonthlyResendGuard,
	})
	reminderService := app.NewReminderService(trainingRepo, telegramClient, appLog, app.ReminderConfig{
		GracePeriod: cfg.PaymentGracePeriod,
		Cooldown:    cfg.ReminderCooldown,
		Lookback:    cfg.ReminderLookback,
	})
	registrationService := app.NewRegistrationService(trainingRepo, appLog)
	adminService := app.NewAdminService(broadcastRepo, trainingRepo, broadcastService, appLog, cfg.AdminIDs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register Handlers
	handlerLogger := appLog.WithField("component", "telegram_handlers")
	telegram.RegisterPlayerHandlers(ctx, bot, registrationService, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, handlerLogger)
	appLog.Info("Command handlers registered")

	// Start the poll loops
	pollScheduler := scheduler.NewPollScheduler(appLog, broadcastService, reminderService, cfg.BroadcastCronSpec, cfg.ReminderCronSpec)
	if err := pollScheduler.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Could not start poll scheduler")
	}

	go bot.Start()
	appLog.Info("Bot started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down application...")
	cancel()
	pollScheduler.Stop()
	bot.Stop()
	appLog.Info("Application shut down gracefully")
}
