// internal/infra/database/postgres_broadcast_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"training_bot/internal/domain/broadcast"

	"github.com/lib/pq" // For pq.Array and driver registration
)

var ErrBroadcastMessageNotFound = fmt.Errorf("broadcast message not found")

type PostgresBroadcastRepository struct {
	db *sql.DB
}

func NewPostgresBroadcastRepository(db *sql.DB) *PostgresBroadcastRepository {
	return &PostgresBroadcastRepository{db: db}
}

const broadcastColumns = `id, message_text, repeat_kind, repeat_days, scheduled_at, next_fire_at, last_sent_at, is_active, created_at, updated_at`

func (r *PostgresBroadcastRepository) Create(ctx context.Context, m *broadcast.Message) error {
	query := `INSERT INTO broadcast_messages (message_text, repeat_kind, repeat_days, scheduled_at, is_active)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		m.Text, string(m.RepeatKind), pq.Array(daysToInt64(m.RepeatDays)), m.ScheduledAt, m.IsActive).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating broadcast message: %w", err)
	}
	return nil
}

func (r *PostgresBroadcastRepository) GetByID(ctx context.Context, id int64) (*broadcast.Message, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcast_messages WHERE id = $1`
	m, err := scanBroadcastMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBroadcastMessageNotFound
		}
		return nil, fmt.Errorf("error getting broadcast message by ID: %w", err)
	}
	return m, nil
}

func (r *PostgresBroadcastRepository) ListActive(ctx context.Context) ([]*broadcast.Message, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcast_messages WHERE is_active = TRUE ORDER BY id`
	return r.list(ctx, query)
}

func (r *PostgresBroadcastRepository) ListAll(ctx context.Context) ([]*broadcast.Message, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcast_messages ORDER BY id`
	return r.list(ctx, query)
}

func (r *PostgresBroadcastRepository) list(ctx context.Context, query string) ([]*broadcast.Message, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing broadcast messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*broadcast.Message, 0)
	for rows.Next() {
		m, err := scanBroadcastMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning broadcast message: %w", err)
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating broadcast messages: %w", err)
	}
	return messages, nil
}

// Update replaces text and schedule wholesale. Callers reset NextFireAt when
// the schedule changes, so the loop recomputes it on the next tick.
func (r *PostgresBroadcastRepository) Update(ctx context.Context, m *broadcast.Message) error {
	query := `UPDATE broadcast_messages
               SET message_text = $1, repeat_kind = $2, repeat_days = $3, scheduled_at = $4,
                   next_fire_at = $5, is_active = $6, updated_at = NOW()
               WHERE id = $7
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		m.Text, string(m.RepeatKind), pq.Array(daysToInt64(m.RepeatDays)), m.ScheduledAt,
		m.NextFireAt, m.IsActive, m.ID).Scan(&m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBroadcastMessageNotFound
		}
		return fmt.Errorf("error updating broadcast message: %w", err)
	}
	return nil
}

func (r *PostgresBroadcastRepository) SetNextFireAt(ctx context.Context, id int64, next time.Time) error {
	query := `UPDATE broadcast_messages SET next_fire_at = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(ctx, query, "error setting next fire time", next, id)
}

func (r *PostgresBroadcastRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time, nextFireAt sql.NullTime, active bool) error {
	query := `UPDATE broadcast_messages
               SET last_sent_at = $1, next_fire_at = $2, is_active = $3, updated_at = NOW()
               WHERE id = $4`
	return r.exec(ctx, query, "error marking broadcast message sent", sentAt, nextFireAt, active, id)
}

func (r *PostgresBroadcastRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE broadcast_messages SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, "error deactivating broadcast message", id)
}

func (r *PostgresBroadcastRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM broadcast_messages WHERE id = $1`
	return r.exec(ctx, query, "error deleting broadcast message", id)
}

// exec runs a single-statement mutation and maps a zero row count onto the
// not-found sentinel.
func (r *PostgresBroadcastRepository) exec(ctx context.Context, query, errPrefix string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", errPrefix, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", errPrefix, err)
	}
	if affected == 0 {
		return ErrBroadcastMessageNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBroadcastMessage(row rowScanner) (*broadcast.Message, error) {
	m := &broadcast.Message{}
	var kind string
	var days pq.Int64Array
	err := row.Scan(&m.ID, &m.Text, &kind, &days, &m.ScheduledAt,
		&m.NextFireAt, &m.LastSentAt, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.RepeatKind = broadcast.RepeatKind(kind)
	m.RepeatDays = make([]int, 0, len(days))
	for _, d := range days {
		m.RepeatDays = append(m.RepeatDays, int(d))
	}
	return m, nil
}

func daysToInt64(days []int) []int64 {
	out := make([]int64, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}
