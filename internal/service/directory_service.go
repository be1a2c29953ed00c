package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// DirectoryService lets admins manage the operators and clients they own.
type DirectoryService struct {
	users        repository.UserRepository
	slots        repository.SlotRepository
	appointments repository.AppointmentRepository
	bcryptCost   int
	logger       *zap.Logger
}

// DirectoryDependencies bundles repositories for the directory service.
type DirectoryDependencies struct {
	UserRepo        repository.UserRepository
	SlotRepo        repository.SlotRepository
	AppointmentRepo repository.AppointmentRepository
	Logger          *zap.Logger
}

// MemberInput describes a new operator or client.
type MemberInput struct {
	Username       string
	Email          string
	Password       string
	Phone          string
	Specialization string
}

// MemberPatch describes a partial operator update. Nil fields are untouched.
type MemberPatch struct {
	Username       *string
	Email          *string
	Password       *string
	Phone          *string
	Specialization *string
	IsActive       *bool
}

// NewDirectoryService constructs the service.
func NewDirectoryService(cfg config.Config, deps DirectoryDependencies) *DirectoryService {
	return &DirectoryService{
		users:        deps.UserRepo,
		slots:        deps.SlotRepo,
		appointments: deps.AppointmentRepo,
		bcryptCost:   cfg.Auth.BcryptCost,
		logger:       orNop(deps.Logger),
	}
}

// ListAdmins returns every admin account.
func (s *DirectoryService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	role := domain.RoleAdmin
	admins, err := s.users.List(ctx, repository.UserFilter{Role: &role})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return admins, nil
}

// ListOperators returns the operators owned by adminID.
func (s *DirectoryService) ListOperators(ctx context.Context, adminID int64) ([]domain.User, error) {
	return s.ListByAdmin(ctx, adminID, domain.RoleOperator)
}

// ListClients returns the clients owned by adminID.
func (s *DirectoryService) ListClients(ctx context.Context, adminID int64) ([]domain.User, error) {
	return s.ListByAdmin(ctx, adminID, domain.RoleClient)
}

// ListByAdmin returns users with role owned by adminID.
func (s *DirectoryService) ListByAdmin(ctx context.Context, adminID int64, role domain.Role) ([]domain.User, error) {
	users, err := s.users.List(ctx, repository.UserFilter{Role: &role, AdminID: &adminID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// CreateOperator registers an operator owned by adminID.
func (s *DirectoryService) CreateOperator(ctx context.Context, adminID int64, input MemberInput) (*domain.User, error) {
	return s.createMember(ctx, adminID, domain.RoleOperator, input)
}

// CreateClient registers a client owned by adminID.
func (s *DirectoryService) CreateClient(ctx context.Context, adminID int64, input MemberInput) (*domain.User, error) {
	input.Specialization = ""
	return s.createMember(ctx, adminID, domain.RoleClient, input)
}

func (s *DirectoryService) createMember(ctx context.Context, adminID int64, role domain.Role, input MemberInput) (*domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

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
	if err := problems.err(); err != nil {
		return nil, err
	}

	if err := checkDuplicates(ctx, s.users, input.Username, input.Email, 0); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	owner := adminID
	user := &domain.User{
		Username:       input.Username,
		Email:          input.Email,
		Phone:          strings.TrimSpace(input.Phone),
		PasswordHash:   hash,
		Role:           role,
		AdminID:        &owner,
		Specialization: strings.TrimSpace(input.Specialization),
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateOperator applies patch to an operator owned by adminID.
func (s *DirectoryService) UpdateOperator(ctx context.Context, adminID, operatorID int64, patch MemberPatch) (*domain.User, error) {
	patch.Username = trimmed(patch.Username)
	patch.Email = trimmed(patch.Email)

	problems := fieldErrors{}
	if patch.Username != nil && *patch.Username == "" {
		problems.add("username", "must not be empty")
	}
	if patch.Email != nil && !validEmail(*patch.Email) {
		problems.add("email", "invalid email address")
	}
	if patch.Password != nil && *patch.Password == "" {
		problems.add("password", "must not be empty")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	operator, err := s.ownedOperator(ctx, adminID, operatorID)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil {
		operator.Username = *patch.Username
	}
	if patch.Email != nil {
		operator.Email = *patch.Email
	}
	if patch.Username != nil || patch.Email != nil {
		if err := checkDuplicates(ctx, s.users, operator.Username, operator.Email, operator.ID); err != nil {
			return nil, err
		}
	}
	if patch.Password != nil {
		hash, err := auth.HashPassword(*patch.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		operator.PasswordHash = hash
	}
	if patch.Phone != nil {
		operator.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Specialization != nil {
		operator.Specialization = strings.TrimSpace(*patch.Specialization)
	}
	if patch.IsActive != nil {
		operator.IsActive = *patch.IsActive
	}

	if err := s.users.Update(ctx, operator); err != nil {
		return nil, notFoundOr(err, "operator", operatorID)
	}
	return operator, nil
}

// DeleteOperator removes an operator together with its slots and appointments.
func (s *DirectoryService) DeleteOperator(ctx context.Context, adminID, operatorID int64) error {
	if _, err := s.ownedOperator(ctx, adminID, operatorID); err != nil {
		return err
	}
	if err := s.appointments.DeleteByOperator(ctx, operatorID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.slots.DeleteByOperator(ctx, operatorID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.users.Delete(ctx, operatorID); err != nil {
		return notFoundOr(err, "operator", operatorID)
	}
	s.logger.Info("operator deleted", zap.Int64("admin_id", adminID), zap.Int64("operator_id", operatorID))
	return nil
}

func (s *DirectoryService) ownedOperator(ctx context.Context, adminID, operatorID int64) (*domain.User, error) {
	operator, err := s.users.GetByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("operator", map[string]any{"id": operatorID})
		}
		return nil, apperrors.MapError(err)
	}
	if operator.Role != domain.RoleOperator {
		return nil, apperrors.NewNotFound("operator", map[string]any{"id": operatorID})
	}
	if !operator.OwnedBy(adminID) {
		return nil, apperrors.NewForbidden("operator belongs to another admin")
	}
	return operator, nil
}
