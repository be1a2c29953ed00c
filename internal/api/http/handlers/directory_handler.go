package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/booking-service/internal/api/dto"
	"github.com/spec-kit/booking-service/internal/service"
)

// DirectoryHandler exposes operator and client management for admins.
type DirectoryHandler struct {
	directory     *service.DirectoryService
	notifications *service.NotificationService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directory *service.DirectoryService, notifications *service.NotificationService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, notifications: notifications}
}

// ListOperators handles GET /api/admin/operators.
func (h *DirectoryHandler) ListOperators(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	operators, err := h.directory.ListOperators(c.UserContext(), admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(operators)})
}

// CreateOperator handles POST /api/admin/operators.
func (h *DirectoryHandler) CreateOperator(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.MemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	operator, err := h.directory.CreateOperator(c.UserContext(), admin.ID, memberInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(operator)})
}

// UpdateOperator handles PUT /api/admin/operators/:id.
func (h *DirectoryHandler) UpdateOperator(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.MemberPatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	operator, err := h.directory.UpdateOperator(c.UserContext(), admin.ID, id, service.MemberPatch{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		IsActive:       req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(operator)})
}

// DeleteOperator handles DELETE /api/admin/operators/:id.
func (h *DirectoryHandler) DeleteOperator(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.directory.DeleteOperator(c.UserContext(), admin.ID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListClients handles GET /api/admin/clients.
func (h *DirectoryHandler) ListClients(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	clients, err := h.directory.ListClients(c.UserContext(), admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(clients)})
}

// CreateClient handles POST /api/admin/clients.
func (h *DirectoryHandler) CreateClient(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.MemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	client, err := h.directory.CreateClient(c.UserContext(), admin.ID, memberInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(client)})
}

// Notify handles POST /api/admin/notify.
func (h *DirectoryHandler) Notify(c *fiber.Ctx) error {
	admin, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.NotifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	count, err := h.notifications.Broadcast(c.UserContext(), admin.ID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"queued": count}})
}

func memberInput(req dto.MemberRequest) service.MemberInput {
	return service.MemberInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		Specialization: req.Specialization,
	}
}
