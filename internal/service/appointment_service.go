package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/persistence"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

const operatorWindowDays = 30

// AppointmentService manages concrete bookings.
type AppointmentService struct {
	users          repository.UserRepository
	appointments   repository.AppointmentRepository
	locker         persistence.Locker
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	enforceOverlap bool
	now            func() time.Time
	location       *time.Location
}

// AppointmentDependencies bundles collaborators for the appointment service.
type AppointmentDependencies struct {
	UserRepo        repository.UserRepository
	AppointmentRepo repository.AppointmentRepository
	Locker          persistence.Locker
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Clock           func() time.Time
	Location        *time.Location
}

// AppointmentCreateInput describes a new booking. Status defaults to pending.
type AppointmentCreateInput struct {
	OperatorID  int64
	ClientID    int64
	StartTime   time.Time
	EndTime     time.Time
	ServiceType string
	Status      domain.AppointmentStatus
	Notes       string
}

// AppointmentPatch describes a partial update. Nil fields are untouched.
type AppointmentPatch struct {
	StartTime   *time.Time
	EndTime     *time.Time
	ServiceType *string
	Status      *domain.AppointmentStatus
	Notes       *string
}

// AppointmentQuery filters listings. AdminID scopes results to that
// admin's operators.
type AppointmentQuery struct {
	AdminID    *int64
	OperatorID *int64
	ClientID   *int64
	Status     *domain.AppointmentStatus
	From       *time.Time
	To         *time.Time
}

// AppointmentStats summarizes appointments per status.
type AppointmentStats struct {
	Total    int
	ByStatus map[domain.AppointmentStatus]int
}

// NewAppointmentService constructs the service.
func NewAppointmentService(cfg config.ScheduleConfig, deps AppointmentDependencies) *AppointmentService {
	locker := deps.Locker
	if locker == nil {
		locker = persistence.NewLocalLocker()
	}
	return &AppointmentService{
		users:          deps.UserRepo,
		appointments:   deps.AppointmentRepo,
		locker:         locker,
		dispatcher:     deps.Dispatcher,
		logger:         orNop(deps.Logger),
		enforceOverlap: cfg.EnforceAppointmentOverlap,
		now:            orNow(deps.Clock),
		location:       orLocal(deps.Location),
	}
}

// Create books an appointment between a client and an operator owned by adminID.
func (s *AppointmentService) Create(ctx context.Context, adminID int64, input AppointmentCreateInput) (*domain.Appointment, error) {
	input.ServiceType = strings.TrimSpace(input.ServiceType)
	if input.Status == "" {
		input.Status = domain.AppointmentStatusPending
	}

	problems := fieldErrors{}
	if input.OperatorID <= 0 {
		problems.add("operator_id", "required")
	}
	if input.ClientID <= 0 {
		problems.add("client_id", "required")
	}
	validateRange(input.StartTime, input.EndTime, problems)
	if err := problems.err(); err != nil {
		return nil, err
	}

	operator, err := resolveRole(ctx, s.users, input.OperatorID, domain.RoleOperator, "operator_id")
	if err != nil {
		return nil, err
	}
	if !operator.OwnedBy(adminID) {
		return nil, errForeignOperator(operator.ID)
	}
	if _, err := resolveRole(ctx, s.users, input.ClientID, domain.RoleClient, "client_id"); err != nil {
		return nil, err
	}

	appt := &domain.Appointment{
		ClientID:    input.ClientID,
		OperatorID:  input.OperatorID,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		ServiceType: input.ServiceType,
		Status:      input.Status,
		Notes:       input.Notes,
	}

	err = s.withOperatorLock(ctx, appt.OperatorID, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, appt); err != nil {
			return err
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger,
		events.New(events.EventAppointmentCreated, &adminID, s.now(), events.NewAppointmentPayload(appt)))
	return appt, nil
}

// Get loads an appointment.
func (s *AppointmentService) Get(ctx context.Context, id int64) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "appointment", id)
	}
	return appt, nil
}

// GetForAdmin loads an appointment whose operator is owned by adminID.
func (s *AppointmentService) GetForAdmin(ctx context.Context, adminID, id int64) (*domain.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, adminID, appt.OperatorID); err != nil {
		return nil, err
	}
	return appt, nil
}

// Update applies patch to an appointment of one of adminID's operators.
func (s *AppointmentService) Update(ctx context.Context, adminID, id int64, patch AppointmentPatch) (*domain.Appointment, error) {
	problems := fieldErrors{}
	if patch.Status != nil && strings.TrimSpace(string(*patch.Status)) == "" {
		problems.add("status", "must not be empty")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	appt, err := s.GetForAdmin(ctx, adminID, id)
	if err != nil {
		return nil, err
	}
	oldStatus := appt.Status

	if patch.StartTime != nil {
		appt.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		appt.EndTime = *patch.EndTime
	}
	if patch.ServiceType != nil {
		appt.ServiceType = strings.TrimSpace(*patch.ServiceType)
	}
	if patch.Status != nil {
		appt.Status = *patch.Status
	}
	if patch.Notes != nil {
		appt.Notes = *patch.Notes
	}

	validateRange(appt.StartTime, appt.EndTime, problems)
	if err := problems.err(); err != nil {
		return nil, err
	}

	save := func(ctx context.Context) error {
		if err := s.appointments.Update(ctx, appt); err != nil {
			return notFoundOr(err, "appointment", id)
		}
		return nil
	}
	if patch.StartTime != nil || patch.EndTime != nil {
		err = s.withOperatorLock(ctx, appt.OperatorID, func(ctx context.Context) error {
			if err := s.checkOverlap(ctx, appt); err != nil {
				return err
			}
			return save(ctx)
		})
	} else {
		err = save(ctx)
	}
	if err != nil {
		return nil, err
	}

	payload := events.NewAppointmentPayload(appt)
	if appt.Status != oldStatus {
		payload.OldStatus = &oldStatus
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventAppointmentUpdated, &adminID, s.now(), payload))
	return appt, nil
}

// Delete removes an appointment of one of adminID's operators.
func (s *AppointmentService) Delete(ctx context.Context, adminID, id int64) error {
	if _, err := s.GetForAdmin(ctx, adminID, id); err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return notFoundOr(err, "appointment", id)
	}
	return nil
}

// List returns appointments matching query ordered by start time.
func (s *AppointmentService) List(ctx context.Context, query AppointmentQuery) ([]domain.Appointment, error) {
	filter := repository.AppointmentFilter{
		OperatorID: query.OperatorID,
		ClientID:   query.ClientID,
		Status:     query.Status,
		StartFrom:  query.From,
		StartTo:    query.To,
	}
	if query.AdminID != nil {
		ids, err := s.operatorIDs(ctx, *query.AdminID)
		if err != nil {
			return nil, err
		}
		filter.OperatorIDs = ids
	}

	appts, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return appts, nil
}

// ListForOperator returns the operator's appointments starting in [from, to).
// A nil from means the start of today and a nil to means thirty days after from.
func (s *AppointmentService) ListForOperator(ctx context.Context, operatorID int64, from, to *time.Time) ([]domain.Appointment, error) {
	if from == nil {
		y, m, d := s.now().In(s.location).Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, s.location)
		from = &today
	}
	if to == nil {
		end := from.AddDate(0, 0, operatorWindowDays)
		to = &end
	}
	if !from.Before(*to) {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"to": "must be after from"})
	}
	return s.List(ctx, AppointmentQuery{OperatorID: &operatorID, From: from, To: to})
}

// ListForClient returns the client's appointments, most recent first.
func (s *AppointmentService) ListForClient(ctx context.Context, clientID int64) ([]domain.Appointment, error) {
	appts, err := s.List(ctx, AppointmentQuery{ClientID: &clientID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].StartTime.After(appts[j].StartTime)
	})
	return appts, nil
}

// Stats counts the appointments of adminID's operators per status. Every
// reported status is present, zero when absent.
func (s *AppointmentService) Stats(ctx context.Context, adminID int64) (*AppointmentStats, error) {
	ids, err := s.operatorIDs(ctx, adminID)
	if err != nil {
		return nil, err
	}
	counts, err := s.appointments.CountByStatus(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := &AppointmentStats{ByStatus: make(map[domain.AppointmentStatus]int, len(domain.ReportedAppointmentStatuses))}
	for _, status := range domain.ReportedAppointmentStatuses {
		stats.ByStatus[status] = counts[status]
	}
	for _, count := range counts {
		stats.Total += count
	}
	return stats, nil
}

// SendReminders publishes a reminder for every appointment starting
// tomorrow in the schedule timezone and returns how many were published.
func (s *AppointmentService) SendReminders(ctx context.Context) (int, error) {
	now := s.now().In(s.location)
	y, m, d := now.Date()
	from := time.Date(y, m, d+1, 0, 0, 0, 0, s.location)
	to := time.Date(y, m, d+2, 0, 0, 0, 0, s.location)

	appts, err := s.appointments.ListStartingBetween(ctx, from, to)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	for i := range appts {
		publish(ctx, s.dispatcher, s.logger,
			events.New(events.EventAppointmentReminder, nil, now, events.NewAppointmentPayload(&appts[i])))
	}
	return len(appts), nil
}

func (s *AppointmentService) operatorIDs(ctx context.Context, adminID int64) ([]int64, error) {
	role := domain.RoleOperator
	operators, err := s.users.List(ctx, repository.UserFilter{Role: &role, AdminID: &adminID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ids := make([]int64, 0, len(operators))
	for _, op := range operators {
		ids = append(ids, op.ID)
	}
	return ids, nil
}

// authorize reports FORBIDDEN unless operatorID is an operator owned by adminID.
func (s *AppointmentService) authorize(ctx context.Context, adminID, operatorID int64) error {
	operator, err := s.users.GetByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errForeignOperator(operatorID)
		}
		return apperrors.MapError(err)
	}
	if operator.Role != domain.RoleOperator || !operator.OwnedBy(adminID) {
		return errForeignOperator(operatorID)
	}
	return nil
}

func errForeignOperator(operatorID int64) error {
	return apperrors.NewDomainError(apperrors.CodeForbidden, "operator belongs to another admin",
		http.StatusForbidden, map[string]any{"operator_id": operatorID})
}

// withOperatorLock runs fn under the operator's booking lock when the overlap
// check is enabled, waiting for the lock until ctx is done.
func (s *AppointmentService) withOperatorLock(ctx context.Context, operatorID int64, fn func(ctx context.Context) error) error {
	if !s.enforceOverlap {
		return fn(ctx)
	}
	key := "operator:" + strconv.FormatInt(operatorID, 10)
	if err := s.locker.WithLock(ctx, key, fn); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *AppointmentService) checkOverlap(ctx context.Context, appt *domain.Appointment) error {
	if !s.enforceOverlap {
		return nil
	}
	clashes, err := s.appointments.ListOverlapping(ctx, appt.OperatorID, appt.StartTime, appt.EndTime, appt.ID)
	if err != nil {
		return err
	}
	if len(clashes) > 0 {
		return apperrors.NewConflict("operator already has an appointment in this range",
			map[string]any{"appointment_id": clashes[0].ID})
	}
	return nil
}

func validateRange(start, end time.Time, problems fieldErrors) {
	if start.IsZero() {
		problems.add("start_time", "required")
	}
	if end.IsZero() {
		problems.add("end_time", "required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		problems.add("end_time", "must be after start_time")
	}
}
