package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// CalendarService projects slots and appointments into calendar events for
// a viewer. It keeps no state between calls.
type CalendarService struct {
	users        repository.UserRepository
	slots        repository.SlotRepository
	appointments repository.AppointmentRepository
	now          func() time.Time
	location     *time.Location
}

// CalendarDependencies bundles collaborators for the calendar service.
type CalendarDependencies struct {
	UserRepo        repository.UserRepository
	SlotRepo        repository.SlotRepository
	AppointmentRepo repository.AppointmentRepository
	Clock           func() time.Time
	Location        *time.Location
}

// NewCalendarService constructs the service.
func NewCalendarService(deps CalendarDependencies) *CalendarService {
	return &CalendarService{
		users:        deps.UserRepo,
		slots:        deps.SlotRepo,
		appointments: deps.AppointmentRepo,
		now:          orNow(deps.Clock),
		location:     orLocal(deps.Location),
	}
}

// Project returns the events visible to viewerID: slots projected onto their
// next occurrence first, then appointments.
//
//	admin:    all slots, all appointments
//	operator: own slots, own appointments
//	client:   approved slots, own appointments
func (s *CalendarService) Project(ctx context.Context, viewerID int64) ([]domain.CalendarEvent, error) {
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": viewerID})
		}
		return nil, apperrors.MapError(err)
	}

	slots, appts, err := s.visible(ctx, viewer)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now().In(s.location)
	names := newNameResolver(s.users)
	events := make([]domain.CalendarEvent, 0, len(slots)+len(appts))

	for i := range slots {
		slot := &slots[i]
		start, end := slot.NextOccurrence(now)
		day := slot.DayOfWeek
		event := domain.CalendarEvent{
			Type:         domain.EventTypeSlot,
			ID:           slot.ID,
			OperatorID:   slot.OperatorID,
			OperatorName: names.lookup(ctx, slot.OperatorID),
			ClientID:     slot.ClientID,
			Start:        start,
			End:          end,
			Status:       string(slot.Status),
			DayOfWeek:    &day,
			IsActive:     slot.IsActive,
		}
		if slot.ClientID != nil {
			event.ClientName = names.lookup(ctx, *slot.ClientID)
		}
		events = append(events, event)
	}

	for i := range appts {
		appt := &appts[i]
		clientID := appt.ClientID
		events = append(events, domain.CalendarEvent{
			Type:         domain.EventTypeAppointment,
			ID:           appt.ID,
			OperatorID:   appt.OperatorID,
			OperatorName: names.lookup(ctx, appt.OperatorID),
			ClientID:     &clientID,
			ClientName:   names.lookup(ctx, appt.ClientID),
			Start:        appt.StartTime.In(s.location),
			End:          appt.EndTime.In(s.location),
			Status:       string(appt.Status),
			ServiceType:  appt.ServiceType,
			IsActive:     true,
		})
	}

	// lookups swallow errors, but a spent deadline must still surface
	if err := ctx.Err(); err != nil {
		return nil, apperrors.MapError(err)
	}
	return events, nil
}

func (s *CalendarService) visible(ctx context.Context, viewer *domain.User) ([]domain.Slot, []domain.Appointment, error) {
	var (
		slots []domain.Slot
		appts []domain.Appointment
		err   error
	)
	switch viewer.Role {
	case domain.RoleAdmin:
		if slots, err = s.slots.ListAll(ctx); err != nil {
			return nil, nil, err
		}
		appts, err = s.appointments.ListAll(ctx)
	case domain.RoleOperator:
		if slots, err = s.slots.ListByOperator(ctx, viewer.ID); err != nil {
			return nil, nil, err
		}
		appts, err = s.appointments.ListByOperator(ctx, viewer.ID)
	case domain.RoleClient:
		if slots, err = s.slots.ListByStatus(ctx, domain.SlotStatusApproved); err != nil {
			return nil, nil, err
		}
		appts, err = s.appointments.ListByClient(ctx, viewer.ID)
	default:
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return slots, appts, nil
}

// nameResolver memoizes username lookups for a single projection.
type nameResolver struct {
	users repository.UserRepository
	names map[int64]string
}

func newNameResolver(users repository.UserRepository) *nameResolver {
	return &nameResolver{users: users, names: make(map[int64]string)}
}

func (r *nameResolver) lookup(ctx context.Context, id int64) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	name := domain.UnknownName
	if user, err := r.users.GetByID(ctx, id); err == nil {
		name = user.Username
	}
	r.names[id] = name
	return name
}
