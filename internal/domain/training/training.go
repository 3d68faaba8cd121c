package training

import (
	"database/sql"
	"time"
)

// Training is a single practice session players sign up for.
type Training struct {
	ID              int64
	StartsAt        time.Time
	MaxParticipants int
	CreatedAt       time.Time
}

// Registration is one player's sign-up for a training.
type Registration struct {
	ID          int64
	TrainingID  int64
	UserID      int64 // Telegram user ID
	Username    string
	DisplayName sql.NullString
	// Goalkeeper marks a player who is never billed for the session and is
	// therefore exempt from payment reminders.
	Goalkeeper          bool
	Paid                bool
	LastPaymentReminder sql.NullTime
	RegisteredAt        time.Time
}
