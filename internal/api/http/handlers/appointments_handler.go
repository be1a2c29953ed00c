package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/booking-service/internal/api/dto"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/service"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// AppointmentsHandler exposes admin appointment management.
type AppointmentsHandler struct {
	appointments *service.AppointmentService
	location     *time.Location
}

// NewAppointmentsHandler constructs handler. Zone-less timestamps are read in loc.
func NewAppointmentsHandler(appointments *service.AppointmentService, loc *time.Location) *AppointmentsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentsHandler{appointments: appointments, location: loc}
}

// List handles GET /api/admin/appointments.
func (h *AppointmentsHandler) List(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}

	problems := map[string]any{}
	query := service.AppointmentQuery{
		AdminID:    &admin.ID,
		OperatorID: queryInt64(c, "operator_id", problems),
		ClientID:   queryInt64(c, "client_id", problems),
	}
	if status := c.Query("status"); status != "" {
		s := domain.AppointmentStatus(status)
		query.Status = &s
	}
	if from := c.Query("from"); from != "" {
		query.From = optionalTimestamp(&from, h.location, "from", problems)
	}
	if to := c.Query("to"); to != "" {
		query.To = optionalTimestamp(&to, h.location, "to", problems)
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("validation failed", problems)
	}

	appts, err := h.appointments.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponses(appts)})
}

// Create handles POST /api/admin/appointments.
func (h *AppointmentsHandler) Create(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.AppointmentCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	problems := map[string]any{}
	input := service.AppointmentCreateInput{
		OperatorID:  req.OperatorID,
		ClientID:    req.ClientID,
		ServiceType: req.ServiceType,
		Status:      domain.AppointmentStatus(req.Status),
		Notes:       req.Notes,
	}
	if req.StartTime == "" {
		problems["start_time"] = "required"
	} else if t := optionalTimestamp(&req.StartTime, h.location, "start_time", problems); t != nil {
		input.StartTime = *t
	}
	if req.EndTime == "" {
		problems["end_time"] = "required"
	} else if t := optionalTimestamp(&req.EndTime, h.location, "end_time", problems); t != nil {
		input.EndTime = *t
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("validation failed", problems)
	}

	appt, err := h.appointments.Create(c.UserContext(), admin.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// Get handles GET /api/admin/appointments/:id.
func (h *AppointmentsHandler) Get(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	appt, err := h.appointments.GetForAdmin(c.UserContext(), admin.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// Update handles PUT /api/admin/appointments/:id.
func (h *AppointmentsHandler) Update(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AppointmentUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	problems := map[string]any{}
	patch := service.AppointmentPatch{
		StartTime:   optionalTimestamp(req.StartTime, h.location, "start_time", problems),
		EndTime:     optionalTimestamp(req.EndTime, h.location, "end_time", problems),
		ServiceType: req.ServiceType,
		Notes:       req.Notes,
	}
	if req.Status != nil {
		status := domain.AppointmentStatus(*req.Status)
		patch.Status = &status
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("validation failed", problems)
	}

	appt, err := h.appointments.Update(c.UserContext(), admin.ID, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// Delete handles DELETE /api/admin/appointments/:id.
func (h *AppointmentsHandler) Delete(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.appointments.Delete(c.UserContext(), admin.ID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// OperatorList handles GET /api/operator/appointments. The window defaults
// to thirty days from the start of today.
func (h *AppointmentsHandler) OperatorList(c *fiber.Ctx) error {
	operator, err := principalUser(c)
	if err != nil {
		return err
	}

	problems := map[string]any{}
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		from = optionalTimestamp(&raw, h.location, "from", problems)
	}
	if raw := c.Query("to"); raw != "" {
		to = optionalTimestamp(&raw, h.location, "to", problems)
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("validation failed", problems)
	}

	appts, err := h.appointments.ListForOperator(c.UserContext(), operator.ID, from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponses(appts)})
}

// ClientList handles GET /api/client/appointments.
func (h *AppointmentsHandler) ClientList(c *fiber.Ctx) error {
	client, err := principalUser(c)
	if err != nil {
		return err
	}
	appts, err := h.appointments.ListForClient(c.UserContext(), client.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponses(appts)})
}

// Stats handles GET /api/admin/stats.
func (h *AppointmentsHandler) Stats(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	stats, err := h.appointments.Stats(c.UserContext(), admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		Total:     stats.Total,
		Pending:   stats.ByStatus[domain.AppointmentStatusPending],
		Approved:  stats.ByStatus[domain.AppointmentStatusApproved],
		Confirmed: stats.ByStatus[domain.AppointmentStatusConfirmed],
		Completed: stats.ByStatus[domain.AppointmentStatusCompleted],
		Cancelled: stats.ByStatus[domain.AppointmentStatusCancelled],
	}})
}

// SendReminders handles POST /api/admin/send-reminders.
func (h *AppointmentsHandler) SendReminders(c *fiber.Ctx) error {
	count, err := h.appointments.SendReminders(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reminders": count}})
}
