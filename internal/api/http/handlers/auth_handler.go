package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/booking-service/internal/api/dto"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/service"
)

// AuthHandler exposes registration, login and the public admin list.
type AuthHandler struct {
	auth      *service.AuthService
	directory *service.DirectoryService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, directory *service.DirectoryService) *AuthHandler {
	return &AuthHandler{auth: authService, directory: directory}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
		AdminID:  req.AdminID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt},
		},
	})
}

// ListAdmins handles GET /api/users/admins.
func (h *AuthHandler) ListAdmins(c *fiber.Ctx) error {
	admins, err := h.directory.ListAdmins(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(admins))
	for _, a := range admins {
		items = append(items, fiber.Map{"id": a.ID, "username": a.Username})
	}
	return c.JSON(fiber.Map{"data": items})
}
