package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/persistence"
	"github.com/spec-kit/booking-service/internal/repository/memory"
	"github.com/spec-kit/booking-service/internal/worker"
)

// tuesday is the fixed "now" of every fixture: Tuesday 20 October 2026, 14:30 UTC.
var tuesday = time.Date(2026, time.October, 20, 14, 30, 0, 0, time.UTC)

type recordingQueue struct {
	mu       sync.Mutex
	messages []worker.Message
	reject   bool
}

func (q *recordingQueue) Enqueue(msg worker.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return false
	}
	q.messages = append(q.messages, msg)
	return true
}

func (q *recordingQueue) sent() []worker.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]worker.Message(nil), q.messages...)
}

type fixture struct {
	store        *memory.Store
	queue        *recordingQueue
	metrics      *observability.Metrics
	auth         *AuthService
	directory    *DirectoryService
	slots        *SlotService
	appointments *AppointmentService
	calendar     *CalendarService
	notify       *NotificationService

	admin      *domain.User
	otherAdmin *domain.User
	operator   *domain.User
	operator2  *domain.User
	client     *domain.User
	client2    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.New()
	cfg.Auth.BcryptCost = 4
	cfg.Schedule.Timezone = "UTC"

	clock := func() time.Time { return tuesday }
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	queue := &recordingQueue{}
	metrics := observability.NewMetrics()

	f := &fixture{store: store, queue: queue, metrics: metrics}
	f.auth = NewAuthService(*cfg, AuthDependencies{UserRepo: store.Users})
	f.directory = NewDirectoryService(*cfg, DirectoryDependencies{
		UserRepo:        store.Users,
		SlotRepo:        store.Slots,
		AppointmentRepo: store.Appointments,
	})
	f.slots = NewSlotService(cfg.Schedule, SlotDependencies{
		UserRepo:   store.Users,
		SlotRepo:   store.Slots,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clock,
	})
	f.appointments = NewAppointmentService(cfg.Schedule, AppointmentDependencies{
		UserRepo:        store.Users,
		AppointmentRepo: store.Appointments,
		Locker:          persistence.NewLocalLocker(),
		Dispatcher:      dispatcher,
		Clock:           clock,
		Location:        time.UTC,
	})
	f.calendar = NewCalendarService(CalendarDependencies{
		UserRepo:        store.Users,
		SlotRepo:        store.Slots,
		AppointmentRepo: store.Appointments,
		Clock:           clock,
		Location:        time.UTC,
	})
	f.notify = NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   store.Users,
		Queue:      queue,
		Location:   time.UTC,
	})
	f.notify.RegisterHandlers()

	f.admin = f.addUser(t, "admin", domain.RoleAdmin, nil, "")
	f.otherAdmin = f.addUser(t, "admin2", domain.RoleAdmin, nil, "")
	f.operator = f.addUser(t, "olga", domain.RoleOperator, &f.admin.ID, "+39000000001")
	f.operator2 = f.addUser(t, "otto", domain.RoleOperator, &f.otherAdmin.ID, "")
	f.client = f.addUser(t, "carla", domain.RoleClient, &f.admin.ID, "+39000000002")
	f.client2 = f.addUser(t, "chris", domain.RoleClient, &f.admin.ID, "")
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role, adminID *int64, phone string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username: name,
		Email:    name + "@example.com",
		Phone:    phone,
		Role:     role,
		AdminID:  adminID,
		IsActive: true,
	}
	require.NoError(t, f.store.Users.Create(context.Background(), user))
	return user
}

func (f *fixture) addSlot(t *testing.T, operatorID int64, clientID *int64, day time.Weekday, start, end string, status domain.SlotStatus) *domain.Slot {
	t.Helper()
	startTime, err := domain.ParseTimeOfDay(start)
	require.NoError(t, err)
	endTime, err := domain.ParseTimeOfDay(end)
	require.NoError(t, err)
	slot := &domain.Slot{
		OperatorID: operatorID,
		ClientID:   clientID,
		DayOfWeek:  day,
		StartTime:  startTime,
		EndTime:    endTime,
		Status:     status,
		IsActive:   true,
	}
	require.NoError(t, f.store.Slots.Create(context.Background(), slot))
	return slot
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}
