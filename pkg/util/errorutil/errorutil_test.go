package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	original := NewInvalidTransition("slot is not pending", map[string]any{"slot_id": int64(4)})
	wrapped := fmt.Errorf("approve: %w", original)

	got := ToDomainError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeInvalidTransition, got.Code)
	assert.Equal(t, http.StatusConflict, got.HTTPStatus)
	assert.Equal(t, int64(4), got.Details["slot_id"])
}

func TestMapErrorClassifiesInfrastructureErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, CodeUnavailable, http.StatusServiceUnavailable},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, CodeDuplicate, http.StatusConflict},
		{"other", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.status, got.HTTPStatus)
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFound("slot", nil))
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
	assert.Nil(t, ToDomainError(nil))
}
