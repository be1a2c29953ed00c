package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// SlotService drives the slot lifecycle: pending -> approved | rejected.
type SlotService struct {
	users          repository.UserRepository
	slots          repository.SlotRepository
	dispatcher     events.Dispatcher
	metrics        *observability.Metrics
	logger         *zap.Logger
	enforceOverlap bool
	now            func() time.Time
}

// SlotDependencies bundles collaborators for the slot service.
type SlotDependencies struct {
	UserRepo   repository.UserRepository
	SlotRepo   repository.SlotRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// SlotWindow is a raw weekly window as received from callers. Times use
// "15:04" or "15:04:05".
type SlotWindow struct {
	DayOfWeek int
	StartTime string
	EndTime   string
}

// SlotRequestInput describes a client's request for a recurring slot.
type SlotRequestInput struct {
	ClientID   int64
	OperatorID int64
	SlotWindow
}

// SlotCreateInput describes an admin-defined slot.
type SlotCreateInput struct {
	OperatorID int64
	SlotWindow
}

// NewSlotService constructs the service.
func NewSlotService(cfg config.ScheduleConfig, deps SlotDependencies) *SlotService {
	return &SlotService{
		users:          deps.UserRepo,
		slots:          deps.SlotRepo,
		dispatcher:     deps.Dispatcher,
		metrics:        deps.Metrics,
		logger:         orNop(deps.Logger),
		enforceOverlap: cfg.EnforceSlotOverlap,
		now:            orNow(deps.Clock),
	}
}

// RequestSlot stores a pending slot requested by a client.
func (s *SlotService) RequestSlot(ctx context.Context, input SlotRequestInput) (*domain.Slot, error) {
	problems := fieldErrors{}
	if input.ClientID <= 0 {
		problems.add("client_id", "required")
	}
	if input.OperatorID <= 0 {
		problems.add("operator_id", "required")
	}
	start, end := parseWindow(input.SlotWindow, problems)
	if err := problems.err(); err != nil {
		return nil, err
	}

	if _, err := resolveRole(ctx, s.users, input.ClientID, domain.RoleClient, "client_id"); err != nil {
		return nil, err
	}
	if _, err := resolveRole(ctx, s.users, input.OperatorID, domain.RoleOperator, "operator_id"); err != nil {
		return nil, err
	}

	clientID := input.ClientID
	slot := &domain.Slot{
		OperatorID: input.OperatorID,
		ClientID:   &clientID,
		DayOfWeek:  time.Weekday(input.DayOfWeek),
		StartTime:  start,
		EndTime:    end,
		Status:     domain.SlotStatusPending,
		IsActive:   true,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordSlotTransition(string(domain.SlotStatusPending))
	publish(ctx, s.dispatcher, s.logger,
		events.New(events.EventSlotRequested, &clientID, s.now(), events.NewSlotPayload(slot)))
	return slot, nil
}

// CreateSlot defines an approved slot for an operator owned by adminID.
func (s *SlotService) CreateSlot(ctx context.Context, adminID int64, input SlotCreateInput) (*domain.Slot, error) {
	problems := fieldErrors{}
	if input.OperatorID <= 0 {
		problems.add("operator_id", "required")
	}
	start, end := parseWindow(input.SlotWindow, problems)
	if err := problems.err(); err != nil {
		return nil, err
	}

	operator, err := resolveRole(ctx, s.users, input.OperatorID, domain.RoleOperator, "operator_id")
	if err != nil {
		return nil, err
	}
	if !operator.OwnedBy(adminID) {
		return nil, apperrors.NewForbidden("operator belongs to another admin")
	}

	day := time.Weekday(input.DayOfWeek)
	if s.enforceOverlap {
		clashes, err := s.slots.ListOverlapping(ctx, input.OperatorID, day, start, end)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if len(clashes) > 0 {
			return nil, apperrors.NewConflict("slot overlaps an existing slot",
				map[string]any{"slot_id": clashes[0].ID})
		}
	}

	slot := &domain.Slot{
		OperatorID: input.OperatorID,
		DayOfWeek:  day,
		StartTime:  start,
		EndTime:    end,
		Status:     domain.SlotStatusApproved,
		IsActive:   true,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordSlotTransition(string(domain.SlotStatusApproved))
	return slot, nil
}

// ListPending returns slots awaiting a decision.
func (s *SlotService) ListPending(ctx context.Context) ([]domain.Slot, error) {
	slots, err := s.slots.ListByStatus(ctx, domain.SlotStatusPending)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return slots, nil
}

// Get loads a slot.
func (s *SlotService) Get(ctx context.Context, slotID int64) (*domain.Slot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, notFoundOr(err, "slot", slotID)
	}
	return slot, nil
}

// Approve transitions a pending slot to approved.
func (s *SlotService) Approve(ctx context.Context, slotID int64) (*domain.Slot, error) {
	return s.transition(ctx, slotID, domain.SlotStatusApproved, events.EventSlotApproved)
}

// Reject transitions a pending slot to rejected.
func (s *SlotService) Reject(ctx context.Context, slotID int64) (*domain.Slot, error) {
	return s.transition(ctx, slotID, domain.SlotStatusRejected, events.EventSlotRejected)
}

func (s *SlotService) transition(ctx context.Context, slotID int64, to domain.SlotStatus, eventType events.EventType) (*domain.Slot, error) {
	slot, err := s.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != domain.SlotStatusPending {
		return nil, invalidSlotTransition(slot, to)
	}

	if err := s.slots.UpdateStatus(ctx, slotID, domain.SlotStatusPending, to); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		// decided or deleted concurrently
		current, getErr := s.Get(ctx, slotID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, invalidSlotTransition(current, to)
	}
	slot.Status = to

	s.metrics.RecordSlotTransition(string(to))
	publish(ctx, s.dispatcher, s.logger, events.New(eventType, nil, s.now(), events.NewSlotPayload(slot)))
	return slot, nil
}

// SetActive toggles whether a slot is offered.
func (s *SlotService) SetActive(ctx context.Context, slotID int64, active bool) (*domain.Slot, error) {
	if err := s.slots.SetActive(ctx, slotID, active); err != nil {
		return nil, notFoundOr(err, "slot", slotID)
	}
	return s.Get(ctx, slotID)
}

// Delete removes a slot.
func (s *SlotService) Delete(ctx context.Context, slotID int64) error {
	if err := s.slots.Delete(ctx, slotID); err != nil {
		return notFoundOr(err, "slot", slotID)
	}
	return nil
}

func invalidSlotTransition(slot *domain.Slot, to domain.SlotStatus) error {
	return apperrors.NewInvalidTransition("slot is not pending",
		map[string]any{"slot_id": slot.ID, "status": slot.Status, "target": to})
}

// parseWindow validates a weekly window, recording problems by field.
func parseWindow(w SlotWindow, problems fieldErrors) (domain.TimeOfDay, domain.TimeOfDay) {
	if !domain.ValidWeekday(w.DayOfWeek) {
		problems.add("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	start, startErr := domain.ParseTimeOfDay(w.StartTime)
	if startErr != nil {
		problems.add("start_time", "must be HH:MM")
	}
	end, endErr := domain.ParseTimeOfDay(w.EndTime)
	if endErr != nil {
		problems.add("end_time", "must be HH:MM")
	}
	if startErr == nil && endErr == nil && start >= end {
		problems.add("end_time", "must be after start_time")
	}
	return start, end
}
