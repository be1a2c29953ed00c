package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/booking-service/internal/api/dto"
	"github.com/spec-kit/booking-service/internal/service"
)

// CalendarHandler serves projected calendars.
type CalendarHandler struct {
	calendar *service.CalendarService
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// Mine handles GET /api/calendar for the authenticated viewer.
func (h *CalendarHandler) Mine(c *fiber.Ctx) error {
	user, err := principalUser(c)
	if err != nil {
		return err
	}
	return h.render(c, user.ID)
}

// ForUser handles GET /api/calendar/:userId.
func (h *CalendarHandler) ForUser(c *fiber.Ctx) error {
	viewerID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	return h.render(c, viewerID)
}

func (h *CalendarHandler) render(c *fiber.Ctx, viewerID int64) error {
	events, err := h.calendar.Project(c.UserContext(), viewerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCalendarResponse(events)})
}
