// internal/domain/broadcast/repository.go
package broadcast

import (
	"context"
	"database/sql"
	"time"
)

// Repository defines persistence operations for broadcast messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListActive(ctx context.Context) ([]*Message, error)
	ListAll(ctx context.Context) ([]*Message, error) // For admin overview
	// Update replaces text and schedule wholesale; admin edits go through here.
	Update(ctx context.Context, m *Message) error
	// SetNextFireAt persists a freshly computed fire time without touching
	// anything else.
	SetNextFireAt(ctx context.Context, id int64, next time.Time) error
	// MarkSent records a successful delivery: last_sent_at, the recomputed
	// next_fire_at (invalid for one-off messages) and the active flag.
	MarkSent(ctx context.Context, id int64, sentAt time.Time, nextFireAt sql.NullTime, active bool) error
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
