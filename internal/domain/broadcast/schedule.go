// internal/domain/broadcast/schedule.go
package broadcast

import "time"

// NextFireTime computes the next instant at which m should fire, strictly
// after now, or nil when no further occurrence exists. It is a pure function:
// the only clock it consults is the now argument.
func NextFireTime(m *Message, now time.Time) *time.Time {
	switch m.RepeatKind {
	case RepeatOnce:
		if m.ScheduledAt.After(now) {
			t := m.ScheduledAt
			return &t
		}
		return nil

	case RepeatDaily:
		next := at(now, m.ScheduledAt)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return &next

	case RepeatWeekly:
		return nextWeekly(m, now)

	case RepeatMonthly:
		return nextMonthly(m, now)
	}
	return nil
}

// at returns day's date at the clock-time of tod, with seconds zeroed.
func at(day, tod time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, day.Location())
}

// mondayWeekday maps time.Weekday onto the Monday-based index (0 = Monday,
// 6 = Sunday) used in Message.RepeatDays.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func nextWeekly(m *Message, now time.Time) *time.Time {
	if len(m.RepeatDays) == 0 {
		return nil
	}

	days := make(map[int]bool, len(m.RepeatDays))
	earliest := m.RepeatDays[0]
	for _, d := range m.RepeatDays {
		days[d] = true
		if d < earliest {
			earliest = d
		}
	}

	current := mondayWeekday(now)
	for offset := 0; offset < 7; offset++ {
		if !days[(current+offset)%7] {
			continue
		}
		next := at(now.AddDate(0, 0, offset), m.ScheduledAt)
		// Today only counts if the clock-time is still ahead.
		if next.After(now) {
			return &next
		}
	}

	// Nothing left this week: wrap to the earliest configured day next week.
	ahead := (earliest - current + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	next := at(now.AddDate(0, 0, ahead), m.ScheduledAt)
	return &next
}

func nextMonthly(m *Message, now time.Time) *time.Time {
	targetDay := m.ScheduledAt.Day()

	next := monthlyAt(now.Year(), now.Month(), targetDay, m.ScheduledAt, now.Location())
	if next.After(now) {
		return &next
	}
	firstOfNext := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	next = monthlyAt(firstOfNext.Year(), firstOfNext.Month(), targetDay, m.ScheduledAt, now.Location())
	return &next
}

// monthlyAt clamps day to the month's last valid day, so a message targeting
// the 31st still fires in shorter months.
func monthlyAt(year int, month time.Month, day int, tod time.Time, loc *time.Location) time.Time {
	if last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day(); day > last {
		day = last
	}
	return time.Date(year, month, day, tod.Hour(), tod.Minute(), 0, 0, loc)
}
