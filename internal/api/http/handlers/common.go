package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/domain"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

const naiveTimestamp = "2006-01-02T15:04:05"

func principalUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid id", map[string]any{name: c.Params(name)})
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// parseTimestamp accepts RFC 3339 or a zone-less timestamp read in loc.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation(naiveTimestamp, value, loc)
}

// optionalTimestamp parses value into field, recording a problem on failure.
func optionalTimestamp(value *string, loc *time.Location, field string, problems map[string]any) *time.Time {
	if value == nil {
		return nil
	}
	t, err := parseTimestamp(*value, loc)
	if err != nil {
		problems[field] = "must be an ISO-8601 timestamp"
		return nil
	}
	return &t
}

func queryInt64(c *fiber.Ctx, key string, problems map[string]any) *int64 {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		problems[key] = "must be an integer"
		return nil
	}
	return &v
}
