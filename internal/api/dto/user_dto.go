package dto

import (
	"time"

	"github.com/spec-kit/booking-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	AdminID  *int64 `json:"admin_id"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MemberRequest creates an operator or client.
type MemberRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
}

// MemberPatchRequest partially updates an operator.
type MemberPatchRequest struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	Phone          *string `json:"phone"`
	Specialization *string `json:"specialization"`
	IsActive       *bool   `json:"is_active"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID             int64       `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	Role           domain.Role `json:"role"`
	AdminID        *int64      `json:"admin_id,omitempty"`
	Specialization string      `json:"specialization,omitempty"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Phone:          u.Phone,
		Role:           u.Role,
		AdminID:        u.AdminID,
		Specialization: u.Specialization,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
	}
}

// NewUserResponses maps a list of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
