package domain

import "time"

// SlotStatus enumerates the approval lifecycle of a slot.
type SlotStatus string

const (
	SlotStatusPending  SlotStatus = "pending"
	SlotStatusApproved SlotStatus = "approved"
	SlotStatusRejected SlotStatus = "rejected"
)

// Slot is a weekly-recurring availability window for an operator.
// DayOfWeek follows time.Weekday: 0 is Sunday, 6 is Saturday.
type Slot struct {
	ID         int64
	OperatorID int64
	ClientID   *int64
	DayOfWeek  time.Weekday
	StartTime  TimeOfDay
	EndTime    TimeOfDay
	Status     SlotStatus
	IsActive   bool
	CreatedAt  time.Time
}

// ValidWeekday reports whether day is within 0..6.
func ValidWeekday(day int) bool {
	return day >= int(time.Sunday) && day <= int(time.Saturday)
}

// NextOccurrence projects the slot onto the nearest date, starting from
// now's calendar day, whose weekday matches DayOfWeek. A slot falling on
// today's weekday always projects onto today, even if its start has passed.
func (s *Slot) NextOccurrence(now time.Time) (time.Time, time.Time) {
	delta := (int(s.DayOfWeek) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	day := time.Date(y, m, d+delta, 0, 0, 0, 0, now.Location())
	return s.StartTime.On(day), s.EndTime.On(day)
}

// Overlaps reports whether two slots share a weekday and intersecting hours.
func (s *Slot) Overlaps(other *Slot) bool {
	return s.DayOfWeek == other.DayOfWeek && s.StartTime < other.EndTime && other.StartTime < s.EndTime
}
