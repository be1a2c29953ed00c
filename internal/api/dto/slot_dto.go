package dto

import (
	"time"

	"github.com/spec-kit/booking-service/internal/domain"
)

// SlotRequest is a client's request for a weekly slot. DayOfWeek is
// 0 (Sunday) to 6 (Saturday).
type SlotRequest struct {
	OperatorID int64  `json:"operator_id"`
	DayOfWeek  *int   `json:"day_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// SlotActiveRequest toggles a slot.
type SlotActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// SlotResponse is the public view of a slot.
type SlotResponse struct {
	ID         int64             `json:"id"`
	OperatorID int64             `json:"operator_id"`
	ClientID   *int64            `json:"client_id,omitempty"`
	DayOfWeek  int               `json:"day_of_week"`
	StartTime  domain.TimeOfDay  `json:"start_time"`
	EndTime    domain.TimeOfDay  `json:"end_time"`
	Status     domain.SlotStatus `json:"status"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewSlotResponse maps a domain slot.
func NewSlotResponse(s *domain.Slot) SlotResponse {
	return SlotResponse{
		ID:         s.ID,
		OperatorID: s.OperatorID,
		ClientID:   s.ClientID,
		DayOfWeek:  int(s.DayOfWeek),
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Status:     s.Status,
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt,
	}
}

// NewSlotResponses maps a list of slots.
func NewSlotResponses(slots []domain.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, NewSlotResponse(&slots[i]))
	}
	return out
}

// CalendarEventResponse is one entry of a projected calendar.
type CalendarEventResponse struct {
	Type         domain.EventType `json:"type"`
	ID           int64            `json:"id"`
	OperatorID   int64            `json:"operator_id"`
	OperatorName string           `json:"operator_name"`
	ClientID     *int64           `json:"client_id,omitempty"`
	ClientName   string           `json:"client_name,omitempty"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Status       string           `json:"status"`
	ServiceType  string           `json:"service_type,omitempty"`
	DayOfWeek    *int             `json:"day_of_week,omitempty"`
	IsActive     bool             `json:"is_active"`
}

// NewCalendarResponse maps projected events.
func NewCalendarResponse(events []domain.CalendarEvent) []CalendarEventResponse {
	out := make([]CalendarEventResponse, 0, len(events))
	for _, e := range events {
		item := CalendarEventResponse{
			Type:         e.Type,
			ID:           e.ID,
			OperatorID:   e.OperatorID,
			OperatorName: e.OperatorName,
			ClientID:     e.ClientID,
			ClientName:   e.ClientName,
			Start:        e.Start,
			End:          e.End,
			Status:       e.Status,
			ServiceType:  e.ServiceType,
			IsActive:     e.IsActive,
		}
		if e.DayOfWeek != nil {
			day := int(*e.DayOfWeek)
			item.DayOfWeek = &day
		}
		out = append(out, item)
	}
	return out
}
