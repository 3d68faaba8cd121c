// internal/domain/broadcast/message.go
package broadcast

import (
	"database/sql"
	"time"
)

// RepeatKind says how often a broadcast message fires.
type RepeatKind string

const (
	RepeatOnce    RepeatKind = "ONCE"
	RepeatDaily   RepeatKind = "DAILY"
	RepeatWeekly  RepeatKind = "WEEKLY"
	RepeatMonthly RepeatKind = "MONTHLY"
)

// Message is a recurring or one-off channel post.
// Corresponds to the 'broadcast_messages' table.
type Message struct {
	ID         int64
	Text       string
	RepeatKind RepeatKind
	RepeatDays []int // weekday indices (0 = Monday), used only for RepeatWeekly
	// ScheduledAt is the configured target: the full instant for ONCE,
	// the clock-time carrier for DAILY/WEEKLY, day-of-month plus clock-time
	// for MONTHLY.
	ScheduledAt time.Time
	NextFireAt  sql.NullTime
	LastSentAt  sql.NullTime
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
