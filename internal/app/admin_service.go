// internal/app/admin_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"training_bot/internal/domain/broadcast"
	"training_bot/internal/domain/training"

	"github.com/sirupsen/logrus"
)

var ErrAdminNotAuthorized = fmt.Errorf("sender is not an administrator")
var ErrInvalidRepeatDays = fmt.Errorf("weekly messages need at least one repeat day")
var ErrInvalidMonthDay = fmt.Errorf("day of month must be between 1 and 31")

// AdminService gates the management operations behind the configured admin
// list and validates input before it reaches the repositories.
type AdminService struct {
	broadcastRepo broadcast.Repository
	trainingRepo  training.Repository
	broadcaster   *BroadcastService
	logger        *logrus.Logger
	adminIDs      []int64
}

func NewAdminService(
	br broadcast.Repository,
	tr training.Repository,
	broadcaster *BroadcastService,
	logger *logrus.Logger,
	adminIDs []int64,
) *AdminService {
	return &AdminService{
		broadcastRepo: br,
		trainingRepo:  tr,
		broadcaster:   broadcaster,
		logger:        logger,
		adminIDs:      adminIDs,
	}
}

// IsAdmin reports whether the sender is in the configured admin list.
func (s *AdminService) IsAdmin(userID int64) bool {
	for _, id := range s.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *AdminService) authorize(userID int64) error {
	if !s.IsAdmin(userID) {
		return ErrAdminNotAuthorized
	}
	return nil
}

// --- Broadcast management ---

// CreateBroadcast stores a new scheduled message. NextFireAt is left unset;
// the broadcast loop computes it on the next tick.
func (s *AdminService) CreateBroadcast(ctx context.Context, performingID int64, m *broadcast.Message) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if err := validateBroadcast(m); err != nil {
		return err
	}

	m.IsActive = true
	if err := s.broadcastRepo.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to create broadcast message: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"message_id":  m.ID,
		"repeat_kind": m.RepeatKind,
		"admin_id":    performingID,
	}).Info("Broadcast message created")
	return nil
}

func validateBroadcast(m *broadcast.Message) error {
	if m.Text == "" {
		return fmt.Errorf("message text must not be empty")
	}
	switch m.RepeatKind {
	case broadcast.RepeatOnce, broadcast.RepeatDaily, broadcast.RepeatMonthly:
	case broadcast.RepeatWeekly:
		if len(m.RepeatDays) == 0 {
			return ErrInvalidRepeatDays
		}
		for _, d := range m.RepeatDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("repeat day %d is out of range", d)
			}
		}
	default:
		return fmt.Errorf("unknown repeat kind %q", m.RepeatKind)
	}
	if m.RepeatKind == broadcast.RepeatMonthly {
		if day := m.ScheduledAt.Day(); day < 1 || day > 31 {
			return ErrInvalidMonthDay
		}
	}
	return nil
}

// UpdateBroadcast replaces a message's text and schedule wholesale. The
// computed fire time is cleared so the loop recomputes it against the new
// schedule on its next tick; an edit also reactivates the message, which is
// how an expired one-off gets revived.
func (s *AdminService) UpdateBroadcast(ctx context.Context, performingID int64, m *broadcast.Message) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if err := validateBroadcast(m); err != nil {
		return err
	}

	m.IsActive = true
	m.NextFireAt = sql.NullTime{}
	if err := s.broadcastRepo.Update(ctx, m); err != nil {
		return fmt.Errorf("failed to update broadcast message: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"message_id":  m.ID,
		"repeat_kind": m.RepeatKind,
		"admin_id":    performingID,
	}).Info("Broadcast message updated")
	return nil
}

func (s *AdminService) ListBroadcasts(ctx context.Context, performingID int64) ([]*broadcast.Message, error) {
	if err := s.authorize(performingID); err != nil {
		return nil, err
	}
	messages, err := s.broadcastRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast messages: %w", err)
	}
	return messages, nil
}

func (s *AdminService) DeactivateBroadcast(ctx context.Context, performingID, messageID int64) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if err := s.broadcastRepo.Deactivate(ctx, messageID); err != nil {
		return fmt.Errorf("failed to deactivate broadcast message: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"admin_id":   performingID,
	}).Info("Broadcast message deactivated")
	return nil
}

func (s *AdminService) DeleteBroadcast(ctx context.Context, performingID, messageID int64) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if err := s.broadcastRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete broadcast message: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"admin_id":   performingID,
	}).Info("Broadcast message deleted")
	return nil
}

// ForceSendBroadcast triggers immediate delivery of a message regardless of
// its schedule.
func (s *AdminService) ForceSendBroadcast(ctx context.Context, performingID, messageID int64) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	return s.broadcaster.ForceSend(ctx, messageID)
}

// --- Training management ---

func (s *AdminService) CreateTraining(ctx context.Context, performingID int64, t *training.Training) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if t.MaxParticipants <= 0 {
		return fmt.Errorf("max participants must be positive")
	}
	if err := s.trainingRepo.CreateTraining(ctx, t); err != nil {
		return fmt.Errorf("failed to create training: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"training_id": t.ID,
		"starts_at":   t.StartsAt.Format(time.RFC3339),
		"admin_id":    performingID,
	}).Info("Training created")
	return nil
}

func (s *AdminService) DeleteTraining(ctx context.Context, performingID, trainingID int64) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if err := s.trainingRepo.DeleteTraining(ctx, trainingID); err != nil {
		return fmt.Errorf("failed to delete training: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"training_id": trainingID,
		"admin_id":    performingID,
	}).Info("Training deleted")
	return nil
}

// MarkRegistrationPaid settles a player's debt and stops their reminders.
func (s *AdminService) MarkRegistrationPaid(ctx context.Context, performingID, registrationID int64) error {
	if err := s.authorize(performingID); err != nil {
		return err
	}
	if err := s.trainingRepo.MarkPaid(ctx, registrationID); err != nil {
		return fmt.Errorf("failed to mark registration paid: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"registration_id": registrationID,
		"admin_id":        performingID,
	}).Info("Registration marked paid")
	return nil
}
