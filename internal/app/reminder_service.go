// internal/app/reminder_service.go
package app

import (
	"context"
	"fmt"
	"time"

	domainTelegram "training_bot/internal/domain/telegram"
	"training_bot/internal/domain/training"

	"github.com/sirupsen/logrus"
)

// ReminderConfig carries the escalation thresholds for the payment reminder
// loop. The values are hand-tuned; defaults live in infra/config.
type ReminderConfig struct {
	GracePeriod time.Duration // delay after training start before reminders begin
	Cooldown    time.Duration // minimum gap between reminders to the same player
	Lookback    time.Duration // how far back to scan for started trainings
}

// ReminderService owns the payment reminder poll loop. After a training's
// grace period elapses, every unpaid non-goalkeeper registration gets a
// direct reminder, repeated on the cooldown until the player pays or turns
// out to be unreachable.
type ReminderService struct {
	trainingRepo   training.Repository
	telegramClient domainTelegram.Client
	logger         *logrus.Logger
	cfg            ReminderConfig

	now func() time.Time
}

func NewReminderService(
	tr training.Repository,
	tc domainTelegram.Client,
	logger *logrus.Logger,
	cfg ReminderConfig,
) *ReminderService {
	return &ReminderService{
		trainingRepo:   tr,
		telegramClient: tc,
		logger:         logger,
		cfg:            cfg,
		now:            time.Now,
	}
}

// RunTick scans recently started trainings and sends payment reminders that
// are due. Failures are isolated per registration: one undeliverable player
// never blocks reminders for the rest of the roster.
func (s *ReminderService) RunTick(ctx context.Context) error {
	now := s.now()
	threshold := now.Add(-s.cfg.GracePeriod)
	from := now.Add(-s.cfg.Lookback)

	trainings, err := s.trainingRepo.ListTrainingsStartedBetween(ctx, from, threshold)
	if err != nil {
		return fmt.Errorf("failed to list started trainings: %w", err)
	}

	for _, t := range trainings {
		regs, err := s.trainingRepo.ListUnpaidRegistrations(ctx, t.ID)
		if err != nil {
			s.logger.WithError(err).WithField("training_id", t.ID).Error("Failed to list unpaid registrations")
			continue
		}
		for _, reg := range regs {
			if !s.due(reg, now) {
				continue
			}
			if err := s.remind(ctx, t, reg, now); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"training_id":     t.ID,
					"registration_id": reg.ID,
				}).Error("Failed to send payment reminder")
			}
		}
	}
	return nil
}

func (s *ReminderService) due(reg *training.Registration, now time.Time) bool {
	if !reg.LastPaymentReminder.Valid {
		return true
	}
	return now.Sub(reg.LastPaymentReminder.Time) >= s.cfg.Cooldown
}

func (s *ReminderService) remind(ctx context.Context, t *training.Training, reg *training.Registration, now time.Time) error {
	text := fmt.Sprintf(
		"💸 Напоминание об оплате тренировки %s.\nЕсли вы уже оплатили — просто проигнорируйте это сообщение.",
		t.StartsAt.Format("02.01.2006 15:04"),
	)

	err := s.telegramClient.SendMessage(ctx, reg.UserID, text, nil)
	if err != nil {
		if domainTelegram.IsTerminal(err) {
			// The player can never receive this (bot blocked, chat gone).
			// Record the attempt anyway so the loop stops retrying a dead
			// destination; the debt stays visible through the paid flag.
			s.logger.WithError(err).WithField("registration_id", reg.ID).
				Warn("Recipient unreachable; suppressing further payment reminders")
			if errUpdate := s.trainingRepo.SetLastPaymentReminder(ctx, reg.ID, now); errUpdate != nil {
				return fmt.Errorf("failed to record suppressed reminder: %w", errUpdate)
			}
			return nil
		}
		// Transient: last_payment_reminder stays untouched, so the same
		// registration is re-selected on a later tick.
		return fmt.Errorf("failed to deliver payment reminder: %w", err)
	}

	if err := s.trainingRepo.SetLastPaymentReminder(ctx, reg.ID, now); err != nil {
		return fmt.Errorf("reminder sent but state update failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"user_id":         reg.UserID,
	}).Info("Payment reminder sent")
	return nil
}
