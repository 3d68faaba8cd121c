package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	AdminIDs      []int64

	// ChannelID is the broadcast destination (channel or group, negative ID).
	// Zero means "not configured": the broadcast loop then no-ops every tick.
	ChannelID int64
	// MessageThreadID addresses a topic inside a supergroup; zero means none.
	MessageThreadID int

	LogLevel    string
	Environment string

	BroadcastCronSpec string // poll interval of the broadcast loop
	ReminderCronSpec  string // poll interval of the payment reminder loop

	// Resend guards are set deliberately just under the nominal period so
	// clock and poll jitter can't cause a double fire. Hand-tuned values,
	// kept as configuration for behavior compatibility.
	DailyResendGuard   time.Duration
	WeeklyResendGuard  time.Duration
	MonthlyResendGuard time.Duration

	PaymentGracePeriod time.Duration // delay after training start before reminders begin
	ReminderCooldown   time.Duration // minimum gap between reminders to the same player
	ReminderLookback   time.Duration // how far back the reminder loop scans for started trainings
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.AdminIDs, err = parseIDList(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_IDS: %w", err)
	}

	// The broadcast destination is optional: without it the broadcast loop
	// logs and skips every tick instead of failing startup.
	if channelIDStr := os.Getenv("CHANNEL_ID"); channelIDStr != "" {
		cfg.ChannelID, err = strconv.ParseInt(channelIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHANNEL_ID: %w", err)
		}
	}
	if threadIDStr := os.Getenv("MESSAGE_THREAD_ID"); threadIDStr != "" {
		cfg.MessageThreadID, err = strconv.Atoi(threadIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid MESSAGE_THREAD_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.BroadcastCronSpec = envOrDefault("CRON_SPEC_BROADCAST", "@every 1m")
	cfg.ReminderCronSpec = envOrDefault("CRON_SPEC_REMINDER", "@every 1m")

	if cfg.DailyResendGuard, err = envDuration("DAILY_RESEND_GUARD", 23*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WeeklyResendGuard, err = envDuration("WEEKLY_RESEND_GUARD", 6*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MonthlyResendGuard, err = envDuration("MONTHLY_RESEND_GUARD", 27*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PaymentGracePeriod, err = envDuration("PAYMENT_GRACE_PERIOD", 90*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderCooldown, err = envDuration("REMINDER_COOLDOWN", 1*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReminderLookback, err = envDuration("REMINDER_LOOKBACK", 48*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func parseIDList(raw string) ([]int64, error) {
	ids := make([]int64, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
