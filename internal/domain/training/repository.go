package training

import (
	"context"
	"time"
)

// Repository defines persistence for trainings and their registrations.
type Repository interface {
	CreateTraining(ctx context.Context, t *Training) error
	GetTrainingByID(ctx context.Context, id int64) (*Training, error)
	ListUpcomingTrainings(ctx context.Context, after time.Time) ([]*Training, error)
	// ListTrainingsStartedBetween returns trainings whose start instant falls
	// within [from, to]. The payment reminder loop uses it to find sessions
	// whose grace period has elapsed.
	ListTrainingsStartedBetween(ctx context.Context, from, to time.Time) ([]*Training, error)
	DeleteTraining(ctx context.Context, id int64) error

	CreateRegistration(ctx context.Context, r *Registration) error
	GetRegistrationByID(ctx context.Context, id int64) (*Registration, error)
	GetRegistration(ctx context.Context, trainingID, userID int64) (*Registration, error)
	ListRegistrationsByTraining(ctx context.Context, trainingID int64) ([]*Registration, error)
	ListRegistrationsByUser(ctx context.Context, userID int64, after time.Time) ([]*Registration, error)
	CountRegistrations(ctx context.Context, trainingID int64) (int, error)
	// ListUnpaidRegistrations returns registrations still owing for a
	// training. Goalkeepers are excluded at query level.
	ListUnpaidRegistrations(ctx context.Context, trainingID int64) ([]*Registration, error)
	SetLastPaymentReminder(ctx context.Context, registrationID int64, at time.Time) error
	MarkPaid(ctx context.Context, registrationID int64) error
	DeleteRegistration(ctx context.Context, id int64) error
}
