package dto

import (
	"time"

	"github.com/spec-kit/booking-service/internal/domain"
)

// AppointmentCreateRequest creates an appointment. Times accept RFC 3339 or
// a zone-less "2006-01-02T15:04:05" read in the schedule timezone.
type AppointmentCreateRequest struct {
	OperatorID  int64  `json:"operator_id"`
	ClientID    int64  `json:"client_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ServiceType string `json:"service_type"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

// AppointmentUpdateRequest partially updates an appointment.
type AppointmentUpdateRequest struct {
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	ServiceType *string `json:"service_type"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

// AppointmentResponse is the public view of an appointment.
type AppointmentResponse struct {
	ID          int64                    `json:"id"`
	ClientID    int64                    `json:"client_id"`
	OperatorID  int64                    `json:"operator_id"`
	StartTime   time.Time                `json:"start_time"`
	EndTime     time.Time                `json:"end_time"`
	ServiceType string                   `json:"service_type"`
	Status      domain.AppointmentStatus `json:"status"`
	Notes       string                   `json:"notes"`
	CreatedAt   time.Time                `json:"created_at"`
}

// NewAppointmentResponse maps a domain appointment.
func NewAppointmentResponse(a *domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		ClientID:    a.ClientID,
		OperatorID:  a.OperatorID,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		ServiceType: a.ServiceType,
		Status:      a.Status,
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
	}
}

// NewAppointmentResponses maps a list of appointments.
func NewAppointmentResponses(appts []domain.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, NewAppointmentResponse(&appts[i]))
	}
	return out
}

// StatsResponse summarizes appointment counts.
type StatsResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// NotifyRequest carries a broadcast message.
type NotifyRequest struct {
	Message string `json:"message"`
}
