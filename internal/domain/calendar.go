package domain

import "time"

// EventType discriminates calendar events.
type EventType string

const (
	EventTypeSlot        EventType = "slot"
	EventTypeAppointment EventType = "appointment"
)

// UnknownName replaces participant names that cannot be resolved.
const UnknownName = "unknown"

// CalendarEvent is a read-only projection of a slot occurrence or an appointment.
type CalendarEvent struct {
	Type         EventType
	ID           int64
	OperatorID   int64
	OperatorName string
	ClientID     *int64
	ClientName   string
	Start        time.Time
	End          time.Time
	Status       string
	ServiceType  string
	DayOfWeek    *time.Weekday
	IsActive     bool
}
