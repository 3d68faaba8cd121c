// internal/infra/database/postgres_training_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"training_bot/internal/domain/training"
)

var ErrTrainingNotFound = fmt.Errorf("training not found")
var ErrRegistrationNotFound = fmt.Errorf("registration not found")
var ErrDuplicateRegistration = fmt.Errorf("player is already registered for this training")

type PostgresTrainingRepository struct {
	db *sql.DB
}

func NewPostgresTrainingRepository(db *sql.DB) *PostgresTrainingRepository {
	return &PostgresTrainingRepository{db: db}
}

// --- Training methods ---

func (r *PostgresTrainingRepository) CreateTraining(ctx context.Context, t *training.Training) error {
	query := `INSERT INTO trainings (starts_at, max_participants)
               VALUES ($1, $2)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, t.StartsAt, t.MaxParticipants).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating training: %w", err)
	}
	return nil
}

func (r *PostgresTrainingRepository) GetTrainingByID(ctx context.Context, id int64) (*training.Training, error) {
	query := `SELECT id, starts_at, max_participants, created_at FROM trainings WHERE id = $1`
	t := &training.Training{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.StartsAt, &t.MaxParticipants, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTrainingNotFound
		}
		return nil, fmt.Errorf("error getting training by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTrainingRepository) ListUpcomingTrainings(ctx context.Context, after time.Time) ([]*training.Training, error) {
	query := `SELECT id, starts_at, max_participants, created_at
               FROM trainings WHERE starts_at > $1 ORDER BY starts_at`
	return r.listTrainings(ctx, query, after)
}

func (r *PostgresTrainingRepository) ListTrainingsStartedBetween(ctx context.Context, from, to time.Time) ([]*training.Training, error) {
	query := `SELECT id, starts_at, max_participants, created_at
               FROM trainings WHERE starts_at >= $1 AND starts_at <= $2 ORDER BY starts_at`
	return r.listTrainings(ctx, query, from, to)
}

func (r *PostgresTrainingRepository) listTrainings(ctx context.Context, query string, args ...interface{}) ([]*training.Training, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing trainings: %w", err)
	}
	defer rows.Close()

	trainings := make([]*training.Training, 0)
	for rows.Next() {
		t := &training.Training{}
		if err := rows.Scan(&t.ID, &t.StartsAt, &t.MaxParticipants, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning training: %w", err)
		}
		trainings = append(trainings, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trainings: %w", err)
	}
	return trainings, nil
}

func (r *PostgresTrainingRepository) DeleteTraining(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trainings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting training: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrTrainingNotFound
	}
	return nil
}

// --- Registration methods ---

const registrationColumns = `id, training_id, user_id, username, display_name, goalkeeper, paid, last_payment_reminder, registered_at`

func (r *PostgresTrainingRepository) CreateRegistration(ctx context.Context, reg *training.Registration) error {
	query := `INSERT INTO registrations (training_id, user_id, username, display_name, goalkeeper, paid)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, registered_at`
	err := r.db.QueryRowContext(ctx, query,
		reg.TrainingID, reg.UserID, reg.Username, reg.DisplayName, reg.Goalkeeper, reg.Paid).
		Scan(&reg.ID, &reg.RegisteredAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("error creating registration: %w", err)
	}
	return nil
}

func (r *PostgresTrainingRepository) GetRegistrationByID(ctx context.Context, id int64) (*training.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("error getting registration by ID: %w", err)
	}
	return reg, nil
}

func (r *PostgresTrainingRepository) GetRegistration(ctx context.Context, trainingID, userID int64) (*training.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE training_id = $1 AND user_id = $2`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, trainingID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("error getting registration: %w", err)
	}
	return reg, nil
}

func (r *PostgresTrainingRepository) ListRegistrationsByTraining(ctx context.Context, trainingID int64) ([]*training.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE training_id = $1 ORDER BY registered_at`
	return r.listRegistrations(ctx, query, trainingID)
}

func (r *PostgresTrainingRepository) ListRegistrationsByUser(ctx context.Context, userID int64, after time.Time) ([]*training.Registration, error) {
	query := `SELECT r.id, r.training_id, r.user_id, r.username, r.display_name, r.goalkeeper, r.paid, r.last_payment_reminder, r.registered_at
               FROM registrations r
               JOIN trainings t ON t.id = r.training_id
               WHERE r.user_id = $1 AND t.starts_at > $2
               ORDER BY t.starts_at`
	return r.listRegistrations(ctx, query, userID, after)
}

func (r *PostgresTrainingRepository) CountRegistrations(ctx context.Context, trainingID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE training_id = $1`, trainingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting registrations: %w", err)
	}
	return count, nil
}

// ListUnpaidRegistrations excludes goalkeepers at query level: exempt players
// must never even be considered for a payment reminder.
func (r *PostgresTrainingRepository) ListUnpaidRegistrations(ctx context.Context, trainingID int64) ([]*training.Registration, error) {
	query := `SELECT ` + registrationColumns + `
               FROM registrations
               WHERE training_id = $1 AND paid = FALSE AND goalkeeper = FALSE
               ORDER BY id`
	return r.listRegistrations(ctx, query, trainingID)
}

func (r *PostgresTrainingRepository) listRegistrations(ctx context.Context, query string, args ...interface{}) ([]*training.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]*training.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registrations: %w", err)
	}
	return regs, nil
}

func (r *PostgresTrainingRepository) SetLastPaymentReminder(ctx context.Context, registrationID int64, at time.Time) error {
	query := `UPDATE registrations SET last_payment_reminder = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, at, registrationID)
	if err != nil {
		return fmt.Errorf("error setting last payment reminder: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (r *PostgresTrainingRepository) MarkPaid(ctx context.Context, registrationID int64) error {
	query := `UPDATE registrations SET paid = TRUE WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, registrationID)
	if err != nil {
		return fmt.Errorf("error marking registration paid: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (r *PostgresTrainingRepository) DeleteRegistration(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting registration: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func scanRegistration(row rowScanner) (*training.Registration, error) {
	reg := &training.Registration{}
	err := row.Scan(&reg.ID, &reg.TrainingID, &reg.UserID, &reg.Username, &reg.DisplayName,
		&reg.Goalkeeper, &reg.Paid, &reg.LastPaymentReminder, &reg.RegisteredAt)
	if err != nil {
		return nil, err
	}
	return reg, nil
}
