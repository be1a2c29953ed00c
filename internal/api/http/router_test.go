package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/booking-service/internal/api/http"
	"github.com/spec-kit/booking-service/internal/api/http/handlers"
	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/notify"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/persistence"
	"github.com/spec-kit/booking-service/internal/repository/memory"
	"github.com/spec-kit/booking-service/internal/service"
	"github.com/spec-kit/booking-service/internal/worker"
)

type testServer struct {
	app *fiber.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.New()
	cfg.Auth.BcryptCost = 4
	cfg.Schedule.Timezone = "UTC"

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher(logger)

	sink := notify.SinkFunc(func(context.Context, string, string) error { return nil })
	notifier := worker.NewNotificationWorker(sink, logger, metrics, cfg.Notify)
	ctx, cancel := context.WithCancel(context.Background())
	notifier.Start(ctx)
	t.Cleanup(func() {
		notifier.Stop()
		cancel()
	})

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: store.Users})
	directory := service.NewDirectoryService(*cfg, service.DirectoryDependencies{
		UserRepo:        store.Users,
		SlotRepo:        store.Slots,
		AppointmentRepo: store.Appointments,
		Logger:          logger,
	})
	slots := service.NewSlotService(cfg.Schedule, service.SlotDependencies{
		UserRepo:   store.Users,
		SlotRepo:   store.Slots,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	appointments := service.NewAppointmentService(cfg.Schedule, service.AppointmentDependencies{
		UserRepo:        store.Users,
		AppointmentRepo: store.Appointments,
		Locker:          persistence.NewLocalLocker(),
		Dispatcher:      dispatcher,
		Logger:          logger,
		Location:        time.UTC,
	})
	calendar := service.NewCalendarService(service.CalendarDependencies{
		UserRepo:        store.Users,
		SlotRepo:        store.Slots,
		AppointmentRepo: store.Appointments,
		Location:        time.UTC,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   store.Users,
		Queue:      notifier,
		Logger:     logger,
		Location:   time.UTC,
	})
	notifications.RegisterHandlers()

	app := httptransport.NewApp("booking-test", logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("booking-test", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService, directory),
		Calendar:       handlers.NewCalendarHandler(calendar),
		Slots:          handlers.NewSlotsHandler(slots),
		Appointments:   handlers.NewAppointmentsHandler(appointments, time.UTC),
		Directory:      handlers.NewDirectoryHandler(directory, notifications),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users),
		Metrics:        metrics,
	})
	return &testServer{app: app}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func (s *testServer) register(t *testing.T, username, role string, adminID *int64) int64 {
	t.Helper()
	status, body := s.do(t, "POST", "/api/auth/register", "", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret-pass",
		"phone":    "+39000000000",
		"role":     role,
		"admin_id": adminID,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return int64(data(body)["id"].(float64))
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	status, body := s.do(t, "POST", "/api/auth/login", "", map[string]any{
		"username": username,
		"password": "secret-pass",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	return data(body)["auth"].(map[string]any)["token"].(string)
}

func (s *testServer) createOperator(t *testing.T, adminToken, username string) int64 {
	t.Helper()
	status, body := s.do(t, "POST", "/api/admin/operators", adminToken, map[string]any{
		"username":       username,
		"email":          username + "@example.com",
		"password":       "secret-pass",
		"specialization": "physio",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return int64(data(body)["id"].(float64))
}

func data(body map[string]any) map[string]any {
	return body["data"].(map[string]any)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, "GET", "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}

func TestHealthReadyWithoutBackends(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, "GET", "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, "GET", "/api/calendar", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = srv.do(t, "GET", "/api/calendar", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "ada", "admin", nil)

	status, body := srv.do(t, "POST", "/api/auth/login", "", map[string]any{
		"username": "ada",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "ada", "admin", nil)

	status, body := srv.do(t, "POST", "/api/auth/register", "", map[string]any{
		"username": "ada",
		"email":    "other@example.com",
		"password": "secret-pass",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "DUPLICATE", errorCode(body))
}

func TestListAdminsIsPublic(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "ada", "admin", nil)
	srv.register(t, "bob", "admin", nil)

	status, body := srv.do(t, "GET", "/api/users/admins", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"].([]any), 2)
}

func TestSlotRequestApprovalFlow(t *testing.T) {
	srv := newTestServer(t)
	adminID := srv.register(t, "ada", "admin", nil)
	srv.register(t, "carla", "client", &adminID)
	adminToken := srv.login(t, "ada")
	clientToken := srv.login(t, "carla")
	operatorID := srv.createOperator(t, adminToken, "olga")

	status, body := srv.do(t, "POST", "/api/client/slots/request", clientToken, map[string]any{
		"operator_id": operatorID,
		"day_of_week": 2,
		"start_time":  "09:00",
		"end_time":    "10:00",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	slot := data(body)
	assert.Equal(t, "pending", slot["status"])
	slotID := int64(slot["id"].(float64))

	status, body = srv.do(t, "GET", "/api/admin/slots/pending", clientToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.do(t, "GET", "/api/admin/slots/pending", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	approvePath := fmt.Sprintf("/api/admin/slots/%d/approve", slotID)
	status, body = srv.do(t, "PUT", approvePath, adminToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "approved", data(body)["status"])

	status, body = srv.do(t, "PUT", approvePath, adminToken, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = srv.do(t, "GET", "/api/calendar", clientToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	calendar := body["data"].([]any)
	require.Len(t, calendar, 1)
	event := calendar[0].(map[string]any)
	assert.Equal(t, "slot", event["type"])
	assert.Equal(t, "olga", event["operator_name"])

	status, _ = srv.do(t, "GET", fmt.Sprintf("/api/calendar/%d", operatorID), clientToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestSlotRequestValidation(t *testing.T) {
	srv := newTestServer(t)
	adminID := srv.register(t, "ada", "admin", nil)
	srv.register(t, "carla", "client", &adminID)
	clientToken := srv.login(t, "carla")

	status, body := srv.do(t, "POST", "/api/client/slots/request", clientToken, map[string]any{
		"operator_id": 999,
		"start_time":  "10:00",
		"end_time":    "09:00",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestAppointmentLifecycle(t *testing.T) {
	srv := newTestServer(t)
	adminID := srv.register(t, "ada", "admin", nil)
	clientID := srv.register(t, "carla", "client", &adminID)
	adminToken := srv.login(t, "ada")
	operatorID := srv.createOperator(t, adminToken, "olga")

	create := map[string]any{
		"operator_id":  operatorID,
		"client_id":    clientID,
		"start_time":   "2030-01-07T09:00:00Z",
		"end_time":     "2030-01-07T10:00:00Z",
		"service_type": "checkup",
	}
	status, body := srv.do(t, "POST", "/api/admin/appointments", adminToken, create)
	require.Equal(t, fiber.StatusCreated, status, body)
	appt := data(body)
	assert.Equal(t, "pending", appt["status"])
	apptPath := fmt.Sprintf("/api/admin/appointments/%d", int64(appt["id"].(float64)))

	overlap := map[string]any{
		"operator_id": operatorID,
		"client_id":   clientID,
		"start_time":  "2030-01-07T09:30:00",
		"end_time":    "2030-01-07T10:30:00",
	}
	status, body = srv.do(t, "POST", "/api/admin/appointments", adminToken, overlap)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = srv.do(t, "PUT", apptPath, adminToken, map[string]any{"status": "confirmed"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "confirmed", data(body)["status"])

	status, body = srv.do(t, "GET", "/api/admin/appointments?status=confirmed", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = srv.do(t, "GET", "/api/admin/stats", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := data(body)
	assert.Equal(t, float64(1), stats["total"])
	assert.Equal(t, float64(1), stats["confirmed"])

	status, body = srv.do(t, "GET", "/api/admin/appointments?from=yesterday", adminToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = srv.do(t, "DELETE", apptPath, adminToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = srv.do(t, "GET", apptPath, adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAppointmentsOfAnotherAdminAreForbidden(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "ada", "admin", nil)
	bobID := srv.register(t, "bob", "admin", nil)
	clientID := srv.register(t, "carla", "client", &bobID)
	adaToken := srv.login(t, "ada")
	bobToken := srv.login(t, "bob")
	ottoID := srv.createOperator(t, bobToken, "otto")

	create := map[string]any{
		"operator_id": ottoID,
		"client_id":   clientID,
		"start_time":  "2030-01-07T09:00:00Z",
		"end_time":    "2030-01-07T10:00:00Z",
	}
	status, body := srv.do(t, "POST", "/api/admin/appointments", adaToken, create)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.do(t, "POST", "/api/admin/appointments", bobToken, create)
	require.Equal(t, fiber.StatusCreated, status, body)
	apptPath := fmt.Sprintf("/api/admin/appointments/%d", int64(data(body)["id"].(float64)))

	status, body = srv.do(t, "GET", apptPath, adaToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = srv.do(t, "PUT", apptPath, adaToken, map[string]any{"status": "cancelled"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = srv.do(t, "DELETE", apptPath, adaToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = srv.do(t, "GET", apptPath, bobToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "pending", data(body)["status"])
}

func TestRoleScopedAppointmentLists(t *testing.T) {
	srv := newTestServer(t)
	adminID := srv.register(t, "ada", "admin", nil)
	clientID := srv.register(t, "carla", "client", &adminID)
	adminToken := srv.login(t, "ada")
	operatorID := srv.createOperator(t, adminToken, "olga")
	operatorToken := srv.login(t, "olga")
	clientToken := srv.login(t, "carla")

	for _, day := range []string{"2030-01-07", "2030-01-09", "2030-03-01"} {
		status, body := srv.do(t, "POST", "/api/admin/appointments", adminToken, map[string]any{
			"operator_id": operatorID,
			"client_id":   clientID,
			"start_time":  day + "T09:00:00Z",
			"end_time":    day + "T10:00:00Z",
		})
		require.Equal(t, fiber.StatusCreated, status, body)
	}

	status, body := srv.do(t, "GET", "/api/operator/appointments?from=2030-01-01T00:00:00Z&to=2030-02-01T00:00:00Z", operatorToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	window := body["data"].([]any)
	require.Len(t, window, 2)
	assert.Equal(t, "2030-01-07T09:00:00Z", window[0].(map[string]any)["start_time"])

	// the default window starts today
	status, body = srv.do(t, "GET", "/api/operator/appointments", operatorToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Empty(t, body["data"].([]any))

	status, body = srv.do(t, "GET", "/api/operator/appointments?from=2030-02-01T00:00:00Z&to=2030-01-01T00:00:00Z", operatorToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.do(t, "GET", "/api/client/appointments", clientToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	mine := body["data"].([]any)
	require.Len(t, mine, 3)
	assert.Equal(t, "2030-03-01T09:00:00Z", mine[0].(map[string]any)["start_time"])
	assert.Equal(t, "2030-01-07T09:00:00Z", mine[2].(map[string]any)["start_time"])

	status, body = srv.do(t, "GET", "/api/operator/appointments", clientToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestOperatorManagementIsScopedToAdmin(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "ada", "admin", nil)
	srv.register(t, "bob", "admin", nil)
	adaToken := srv.login(t, "ada")
	bobToken := srv.login(t, "bob")
	operatorID := srv.createOperator(t, adaToken, "olga")

	status, body := srv.do(t, "GET", "/api/admin/operators", bobToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"].([]any))

	path := fmt.Sprintf("/api/admin/operators/%d", operatorID)
	status, _ = srv.do(t, "DELETE", path, bobToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = srv.do(t, "PUT", path, adaToken, map[string]any{"specialization": "dentist"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "dentist", data(body)["specialization"])

	status, _ = srv.do(t, "DELETE", path, adaToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestBroadcastQueuesForAdminsPeople(t *testing.T) {
	srv := newTestServer(t)
	adminID := srv.register(t, "ada", "admin", nil)
	srv.register(t, "carla", "client", &adminID)
	adminToken := srv.login(t, "ada")

	status, body := srv.do(t, "POST", "/api/admin/notify", adminToken, map[string]any{"message": "closed on friday"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, float64(1), data(body)["queued"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, "GET", "/health/live", "", nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "booking_http_requests_total")
}
