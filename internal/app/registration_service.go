// internal/app/registration_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"training_bot/internal/domain/training"
	idb "training_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var ErrNoUpcomingTraining = fmt.Errorf("no upcoming training")
var ErrAlreadyRegistered = fmt.Errorf("player is already registered for this training")
var ErrTrainingFull = fmt.Errorf("training has no free spots left")
var ErrRegistrationNotOwned = fmt.Errorf("registration belongs to another player")

// TrainingWithCount pairs a training with its current roster size for
// schedule listings.
type TrainingWithCount struct {
	Training   *training.Training
	Registered int
}

// UserRegistration pairs a registration with its training for per-player
// listings.
type UserRegistration struct {
	Registration *training.Registration
	Training     *training.Training
}

// RegistrationService implements the player-facing sign-up workflows.
type RegistrationService struct {
	trainingRepo training.Repository
	logger       *logrus.Logger

	now func() time.Time
}

func NewRegistrationService(tr training.Repository, logger *logrus.Logger) *RegistrationService {
	return &RegistrationService{
		trainingRepo: tr,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterForNearest signs the player up for the nearest upcoming training.
// Goalkeepers occupy a spot like everyone else but are exempt from payment.
// displayName is the human-readable name shown in rosters; it may be empty
// when the Telegram profile carries no name.
func (s *RegistrationService) RegisterForNearest(ctx context.Context, userID int64, username, displayName string, goalkeeper bool) (*training.Registration, *training.Training, error) {
	nearest, err := s.nearestUpcoming(ctx)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.trainingRepo.GetRegistration(ctx, nearest.ID, userID); err == nil {
		return nil, nearest, ErrAlreadyRegistered
	} else if err != idb.ErrRegistrationNotFound {
		return nil, nil, fmt.Errorf("failed to check existing registration: %w", err)
	}

	count, err := s.trainingRepo.CountRegistrations(ctx, nearest.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count registrations: %w", err)
	}
	if count >= nearest.MaxParticipants {
		return nil, nearest, ErrTrainingFull
	}

	reg := &training.Registration{
		TrainingID:  nearest.ID,
		UserID:      userID,
		Username:    username,
		DisplayName: sql.NullString{String: displayName, Valid: displayName != ""},
		Goalkeeper:  goalkeeper,
	}
	if err := s.trainingRepo.CreateRegistration(ctx, reg); err != nil {
		if err == idb.ErrDuplicateRegistration {
			return nil, nearest, ErrAlreadyRegistered
		}
		return nil, nil, fmt.Errorf("failed to create registration: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"training_id":     nearest.ID,
		"registration_id": reg.ID,
		"user_id":         userID,
		"goalkeeper":      goalkeeper,
	}).Info("Player registered for training")
	return reg, nearest, nil
}

// UpcomingTrainings lists future trainings with their roster sizes.
func (s *RegistrationService) UpcomingTrainings(ctx context.Context) ([]TrainingWithCount, error) {
	trainings, err := s.trainingRepo.ListUpcomingTrainings(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming trainings: %w", err)
	}

	out := make([]TrainingWithCount, 0, len(trainings))
	for _, t := range trainings {
		count, err := s.trainingRepo.CountRegistrations(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count registrations for training %d: %w", t.ID, err)
		}
		out = append(out, TrainingWithCount{Training: t, Registered: count})
	}
	return out, nil
}

// MyRegistrations lists the player's registrations for future trainings.
func (s *RegistrationService) MyRegistrations(ctx context.Context, userID int64) ([]UserRegistration, error) {
	regs, err := s.trainingRepo.ListRegistrationsByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	out := make([]UserRegistration, 0, len(regs))
	for _, reg := range regs {
		t, err := s.trainingRepo.GetTrainingByID(ctx, reg.TrainingID)
		if err != nil {
			return nil, fmt.Errorf("failed to load training %d: %w", reg.TrainingID, err)
		}
		out = append(out, UserRegistration{Registration: reg, Training: t})
	}
	return out, nil
}

// Cancel removes the player's own registration.
func (s *RegistrationService) Cancel(ctx context.Context, userID, registrationID int64) error {
	reg, err := s.trainingRepo.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		if err == idb.ErrRegistrationNotFound {
			return idb.ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to load registration: %w", err)
	}
	if reg.UserID != userID {
		return ErrRegistrationNotOwned
	}

	if err := s.trainingRepo.DeleteRegistration(ctx, registrationID); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"registration_id": registrationID,
		"user_id":         userID,
	}).Info("Registration cancelled")
	return nil
}

// Roster returns the nearest upcoming training together with its roster.
func (s *RegistrationService) Roster(ctx context.Context) (*training.Training, []*training.Registration, error) {
	nearest, err := s.nearestUpcoming(ctx)
	if err != nil {
		return nil, nil, err
	}
	regs, err := s.trainingRepo.ListRegistrationsByTraining(ctx, nearest.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return nearest, regs, nil
}

func (s *RegistrationService) nearestUpcoming(ctx context.Context) (*training.Training, error) {
	trainings, err := s.trainingRepo.ListUpcomingTrainings(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming trainings: %w", err)
	}
	if len(trainings) == 0 {
		return nil, ErrNoUpcomingTraining
	}
	return trainings[0], nil
}
