package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/repository"
	"github.com/spec-kit/booking-service/internal/worker"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// Enqueuer accepts messages for background delivery.
type Enqueuer interface {
	Enqueue(msg worker.Message) bool
}

// NotificationService turns domain events into text messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	queue      Enqueuer
	logger     *zap.Logger
	location   *time.Location
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	UserRepo   repository.UserRepository
	Queue      Enqueuer
	Logger     *zap.Logger
	Location   *time.Location
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		users:      deps.UserRepo,
		queue:      deps.Queue,
		logger:     orNop(deps.Logger),
		location:   orLocal(deps.Location),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAppointmentCreated, n.handleAppointmentCreated)
	n.dispatcher.Subscribe(events.EventAppointmentUpdated, n.handleAppointmentUpdated)
	n.dispatcher.Subscribe(events.EventAppointmentReminder, n.handleAppointmentReminder)
	n.dispatcher.Subscribe(events.EventSlotRequested, n.handleSlotRequested)
	n.dispatcher.Subscribe(events.EventSlotApproved, n.handleSlotDecided)
	n.dispatcher.Subscribe(events.EventSlotRejected, n.handleSlotDecided)
}

// Broadcast queues message for every client of adminID that has a phone
// number and returns how many were accepted.
func (n *NotificationService) Broadcast(ctx context.Context, adminID int64, message string) (int, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, apperrors.NewValidationError("validation failed", map[string]any{"message": "required"})
	}

	admin, err := n.users.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NewNotFound("admin", map[string]any{"id": adminID})
		}
		return 0, apperrors.MapError(err)
	}
	if admin.Role != domain.RoleAdmin {
		return 0, apperrors.NewNotFound("admin", map[string]any{"id": adminID})
	}

	role := domain.RoleClient
	clients, err := n.users.List(ctx, repository.UserFilter{Role: &role, AdminID: &adminID})
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	queued := 0
	for i := range clients {
		if n.send(&clients[i], "broadcast", message) {
			queued++
		}
	}
	return queued, nil
}

func (n *NotificationService) handleAppointmentCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AppointmentPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	client, err := n.users.GetByID(ctx, payload.ClientID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Hello %s, your appointment for '%s' was created for %s.",
		client.Username, payload.ServiceType, payload.StartTime.In(n.location).Format("02/01/2006 15:04"))
	n.send(client, string(event.Type), msg)
	return nil
}

func (n *NotificationService) handleAppointmentUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AppointmentPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.OldStatus == nil {
		return nil
	}
	client, err := n.users.GetByID(ctx, payload.ClientID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Hello %s, your appointment status is now: %s", client.Username, payload.Status)
	n.send(client, string(event.Type), msg)
	return nil
}

func (n *NotificationService) handleAppointmentReminder(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AppointmentPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	client, err := n.users.GetByID(ctx, payload.ClientID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Reminder: you have an appointment tomorrow at %s",
		payload.StartTime.In(n.location).Format("15:04"))
	n.send(client, string(event.Type), msg)
	return nil
}

func (n *NotificationService) handleSlotRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlotPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	operator, err := n.users.GetByID(ctx, payload.OperatorID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("New slot request for %s %s-%s", payload.DayOfWeek, payload.StartTime, payload.EndTime)
	n.send(operator, string(event.Type), msg)
	return nil
}

func (n *NotificationService) handleSlotDecided(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlotPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.ClientID == nil {
		return nil
	}
	client, err := n.users.GetByID(ctx, *payload.ClientID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Your slot request for %s %s-%s was %s",
		payload.DayOfWeek, payload.StartTime, payload.EndTime, payload.Status)
	n.send(client, string(event.Type), msg)
	return nil
}

// send queues msg for user; users without a phone are skipped.
func (n *NotificationService) send(user *domain.User, kind, msg string) bool {
	if strings.TrimSpace(user.Phone) == "" {
		n.logger.Debug("notification skipped, no phone", zap.Int64("user_id", user.ID), zap.String("kind", kind))
		return false
	}
	if n.queue == nil {
		return false
	}
	return n.queue.Enqueue(worker.Message{Phone: user.Phone, Body: msg, Kind: kind})
}
