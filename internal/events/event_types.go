package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/booking-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAppointmentCreated  EventType = "appointment_created"
	EventAppointmentUpdated  EventType = "appointment_updated"
	EventAppointmentReminder EventType = "appointment_reminder"
	EventSlotRequested       EventType = "slot_requested"
	EventSlotApproved        EventType = "slot_approved"
	EventSlotRejected        EventType = "slot_rejected"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id and the given time.
func New(eventType EventType, actorID *int64, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
}

// AppointmentPayload accompanies appointment events. OldStatus is set on
// updates that changed the status.
type AppointmentPayload struct {
	AppointmentID int64                     `json:"appointment_id"`
	ClientID      int64                     `json:"client_id"`
	OperatorID    int64                     `json:"operator_id"`
	StartTime     time.Time                 `json:"start_time"`
	EndTime       time.Time                 `json:"end_time"`
	ServiceType   string                    `json:"service_type"`
	Status        domain.AppointmentStatus  `json:"status"`
	OldStatus     *domain.AppointmentStatus `json:"old_status,omitempty"`
}

// NewAppointmentPayload copies the fields of appt.
func NewAppointmentPayload(appt *domain.Appointment) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		OperatorID:    appt.OperatorID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		ServiceType:   appt.ServiceType,
		Status:        appt.Status,
	}
}

// SlotPayload accompanies slot events.
type SlotPayload struct {
	SlotID     int64             `json:"slot_id"`
	OperatorID int64             `json:"operator_id"`
	ClientID   *int64            `json:"client_id,omitempty"`
	DayOfWeek  time.Weekday      `json:"day_of_week"`
	StartTime  domain.TimeOfDay  `json:"start_time"`
	EndTime    domain.TimeOfDay  `json:"end_time"`
	Status     domain.SlotStatus `json:"status"`
}

// NewSlotPayload copies the fields of slot.
func NewSlotPayload(slot *domain.Slot) SlotPayload {
	return SlotPayload{
		SlotID:     slot.ID,
		OperatorID: slot.OperatorID,
		ClientID:   slot.ClientID,
		DayOfWeek:  slot.DayOfWeek,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		Status:     slot.Status,
	}
}
