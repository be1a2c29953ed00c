package domain

import "time"

// AppointmentStatus is free-form; these are the values the service emits or counts.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusApproved  AppointmentStatus = "approved"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// ReportedAppointmentStatuses is the status order used by statistics.
var ReportedAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusApproved,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
}

// Appointment is a concrete booking between one client and one operator.
type Appointment struct {
	ID          int64
	ClientID    int64
	OperatorID  int64
	StartTime   time.Time
	EndTime     time.Time
	ServiceType string
	Status      AppointmentStatus
	Notes       string
	CreatedAt   time.Time
}

// Overlaps reports whether the half-open ranges [StartTime, EndTime) intersect.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}
