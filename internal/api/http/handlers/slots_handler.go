package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/booking-service/internal/api/dto"
	"github.com/spec-kit/booking-service/internal/service"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// SlotsHandler exposes slot requests and their administration.
type SlotsHandler struct {
	slots *service.SlotService
}

// NewSlotsHandler constructs handler.
func NewSlotsHandler(slots *service.SlotService) *SlotsHandler {
	return &SlotsHandler{slots: slots}
}

// Request handles POST /api/client/slots/request.
func (h *SlotsHandler) Request(c *fiber.Ctx) error {
	user, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.SlotRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	slot, err := h.slots.RequestSlot(c.UserContext(), service.SlotRequestInput{
		ClientID:   user.ID,
		OperatorID: req.OperatorID,
		SlotWindow: window(req),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}

// ListPending handles GET /api/admin/slots/pending.
func (h *SlotsHandler) ListPending(c *fiber.Ctx) error {
	slots, err := h.slots.ListPending(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlotResponses(slots)})
}

// Create handles POST /api/admin/slots.
func (h *SlotsHandler) Create(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.SlotRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	slot, err := h.slots.CreateSlot(c.UserContext(), admin.ID, service.SlotCreateInput{
		OperatorID: req.OperatorID,
		SlotWindow: window(req),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}

// Approve handles PUT /api/admin/slots/:id/approve.
func (h *SlotsHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	slot, err := h.slots.Approve(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}

// Reject handles PUT /api/admin/slots/:id/reject.
func (h *SlotsHandler) Reject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	slot, err := h.slots.Reject(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}

// SetActive handles PUT /api/admin/slots/:id/active.
func (h *SlotsHandler) SetActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SlotActiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsActive == nil {
		return apperrors.NewValidationError("validation failed", map[string]any{"is_active": "required"})
	}

	slot, err := h.slots.SetActive(c.UserContext(), id, *req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}

// Delete handles DELETE /api/admin/slots/:id.
func (h *SlotsHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.slots.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func window(req dto.SlotRequest) service.SlotWindow {
	day := -1
	if req.DayOfWeek != nil {
		day = *req.DayOfWeek
	}
	return service.SlotWindow{DayOfWeek: day, StartTime: req.StartTime, EndTime: req.EndTime}
}
