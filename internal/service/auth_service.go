package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
}

// RegisterInput describes a self-registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	Role     domain.Role
	AdminID  *int64
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates an account. Role defaults to client.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Role == "" {
		input.Role = domain.RoleClient
	}

	problems := fieldErrors{}
	if input.Username == "" {
		problems.add("username", "required")
	}
	if input.Email == "" {
		problems.add("email", "required")
	} else if !validEmail(input.Email) {
		problems.add("email", "invalid email address")
	}
	if input.Password == "" {
		problems.add("password", "required")
	}
	if !input.Role.Valid() {
		problems.add("role", "must be one of admin, operator, client")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	if input.AdminID != nil {
		if _, err := resolveRole(ctx, s.users, *input.AdminID, domain.RoleAdmin, "admin_id"); err != nil {
			return nil, err
		}
	}
	if err := checkDuplicates(ctx, s.users, input.Username, input.Email, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: hash,
		Role:         input.Role,
		AdminID:      input.AdminID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// FindByCredentials returns the active user matching username and password.
func (s *AuthService) FindByCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("user is inactive")
	}
	return user, nil
}

// Login authenticates a user and issues an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, domain.Token, error) {
	user, err := s.FindByCredentials(ctx, username, password)
	if err != nil {
		return nil, domain.Token{}, err
	}
	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
