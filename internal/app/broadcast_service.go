// internal/app/broadcast_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"training_bot/internal/domain/broadcast"
	domainTelegram "training_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var ErrChannelNotConfigured = fmt.Errorf("broadcast channel is not configured")

// BroadcastConfig carries the destination and the resend guards for the
// broadcast loop.
type BroadcastConfig struct {
	ChannelID       int64
	MessageThreadID int

	DailyResendGuard   time.Duration
	WeeklyResendGuard  time.Duration
	MonthlyResendGuard time.Duration
}

// BroadcastService owns the broadcast poll loop: each tick it decides which
// scheduled channel messages are due, delivers them and advances their state.
// The store is the single source of truth: every tick re-reads current state,
// so edits made between ticks are picked up automatically.
type BroadcastService struct {
	repo           broadcast.Repository
	telegramClient domainTelegram.Client
	logger         *logrus.Logger
	cfg            BroadcastConfig

	now func() time.Time
}

func NewBroadcastService(
	repo broadcast.Repository,
	tc domainTelegram.Client,
	logger *logrus.Logger,
	cfg BroadcastConfig,
) *BroadcastService {
	return &BroadcastService{
		repo:           repo,
		telegramClient: tc,
		logger:         logger,
		cfg:            cfg,
		now:            time.Now,
	}
}

// RunTick processes every active broadcast message once. A failure on one
// message never aborts the tick: it is logged and the loop moves on, so a
// single bad row or dead destination cannot stall the whole schedule.
func (s *BroadcastService) RunTick(ctx context.Context) error {
	if s.cfg.ChannelID == 0 {
		s.logger.Debug("CHANNEL_ID is not configured; skipping broadcast tick")
		return nil
	}

	now := s.now()
	messages, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active broadcast messages: %w", err)
	}

	sent := 0
	for _, m := range messages {
		didSend, err := s.processMessage(ctx, m, now)
		if err != nil {
			s.logger.WithError(err).WithField("message_id", m.ID).Error("Failed to process broadcast message")
			continue
		}
		if didSend {
			sent++
		}
	}

	if sent > 0 {
		s.logger.WithField("sent", sent).Info("Broadcast tick delivered messages")
	}
	return nil
}

func (s *BroadcastService) processMessage(ctx context.Context, m *broadcast.Message, now time.Time) (bool, error) {
	// Lazy initialization: a message created or edited without a computed
	// fire time gets one now and is not sent until a later tick.
	if !m.NextFireAt.Valid {
		next := broadcast.NextFireTime(m, now)
		if next == nil {
			// Expired one-off, or a weekly message with no days configured.
			// Left as-is so an admin edit can still revive it.
			s.logger.WithField("message_id", m.ID).Warn("No next fire time could be computed for broadcast message")
			return false, nil
		}
		if err := s.repo.SetNextFireAt(ctx, m.ID, *next); err != nil {
			return false, fmt.Errorf("failed to persist next fire time: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"message_id":   m.ID,
			"next_fire_at": next.Format(time.RFC3339),
		}).Info("Scheduled broadcast message")
		return false, nil
	}

	if m.NextFireAt.Time.After(now) {
		return false, nil // not due yet
	}

	if !s.eligible(m, now) {
		// Due per next_fire_at, but a recent send says otherwise (e.g. the
		// fire time lagged behind after an edit or a forced send).
		return false, nil
	}

	if err := s.telegramClient.SendMessage(ctx, s.cfg.ChannelID, m.Text, s.sendOptions()); err != nil {
		// State stays untouched: the next tick retries at the poll cadence.
		return false, fmt.Errorf("failed to deliver broadcast message: %w", err)
	}

	nextFire, active := s.afterSend(m, now)
	if err := s.repo.MarkSent(ctx, m.ID, now, nextFire, active); err != nil {
		return true, fmt.Errorf("message sent but state update failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"message_id":  m.ID,
		"repeat_kind": m.RepeatKind,
	}).Info("Broadcast message sent")
	return true, nil
}

// eligible guards against double fires when next_fire_at is stale: a message
// already sent within the guard window for its kind must wait.
func (s *BroadcastService) eligible(m *broadcast.Message, now time.Time) bool {
	if !m.LastSentAt.Valid {
		return true
	}
	elapsed := now.Sub(m.LastSentAt.Time)
	switch m.RepeatKind {
	case broadcast.RepeatOnce:
		return false // already had its single send
	case broadcast.RepeatDaily:
		return elapsed >= s.cfg.DailyResendGuard
	case broadcast.RepeatWeekly:
		return elapsed >= s.cfg.WeeklyResendGuard
	case broadcast.RepeatMonthly:
		return elapsed >= s.cfg.MonthlyResendGuard
	}
	return false
}

// afterSend computes the post-send state: one-off messages deactivate,
// periodic ones get their next occurrence.
func (s *BroadcastService) afterSend(m *broadcast.Message, now time.Time) (sql.NullTime, bool) {
	if m.RepeatKind == broadcast.RepeatOnce {
		return sql.NullTime{}, false
	}
	var nextFire sql.NullTime
	if next := broadcast.NextFireTime(m, now); next != nil {
		nextFire = sql.NullTime{Time: *next, Valid: true}
	}
	return nextFire, true
}

// ForceSend delivers a message immediately, bypassing due-time and guard
// checks. The send is still recorded exactly like a scheduled one, so the
// next regular tick cannot double-send.
func (s *BroadcastService) ForceSend(ctx context.Context, id int64) error {
	if s.cfg.ChannelID == 0 {
		return ErrChannelNotConfigured
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load broadcast message %d: %w", id, err)
	}

	now := s.now()
	if err := s.telegramClient.SendMessage(ctx, s.cfg.ChannelID, m.Text, s.sendOptions()); err != nil {
		return fmt.Errorf("failed to deliver broadcast message: %w", err)
	}

	nextFire, active := s.afterSend(m, now)
	if err := s.repo.MarkSent(ctx, m.ID, now, nextFire, active); err != nil {
		return fmt.Errorf("message sent but state update failed: %w", err)
	}
	return nil
}

func (s *BroadcastService) sendOptions() *telebot.SendOptions {
	opts := &telebot.SendOptions{}
	if s.cfg.MessageThreadID != 0 {
		opts.ThreadID = s.cfg.MessageThreadID
	}
	return opts
}
