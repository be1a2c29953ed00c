package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// fieldErrors collects per-field validation messages.
type fieldErrors map[string]any

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("validation failed", map[string]any(f))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// notFoundOr converts pgx.ErrNoRows into a NotFound error for resource.
func notFoundOr(err error, resource string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

// resolveRole loads a user that must carry the given role. A missing user
// or a role mismatch is an invalid reference on field.
func resolveRole(ctx context.Context, users repository.UserRepository, id int64, role domain.Role, field string) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidReference(field+" does not resolve to a "+string(role),
				map[string]any{field: id})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role != role {
		return nil, apperrors.NewInvalidReference(field+" does not resolve to a "+string(role),
			map[string]any{field: id, "role": user.Role})
	}
	return user, nil
}

// checkDuplicates reports username or email collisions with users other
// than excludeID.
func checkDuplicates(ctx context.Context, users repository.UserRepository, username, email string, excludeID int64) error {
	if existing, err := users.GetByUsername(ctx, username); err == nil && existing.ID != excludeID {
		return apperrors.NewDuplicate("username already registered", map[string]any{"username": username})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	if existing, err := users.GetByEmail(ctx, email); err == nil && existing.ID != excludeID {
		return apperrors.NewDuplicate("email already registered", map[string]any{"email": email})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	return nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func orNow(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
