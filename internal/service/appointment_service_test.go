package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/persistence"
	"github.com/spec-kit/booking-service/internal/repository"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// createAppointment books as the admin owning operatorID.
func (f *fixture) createAppointment(t *testing.T, operatorID, clientID int64, startDay, startHour int) *domain.Appointment {
	t.Helper()
	operator, err := f.store.Users.GetByID(context.Background(), operatorID)
	require.NoError(t, err)
	require.NotNil(t, operator.AdminID)

	appt, err := f.appointments.Create(context.Background(), *operator.AdminID, AppointmentCreateInput{
		OperatorID:  operatorID,
		ClientID:    clientID,
		StartTime:   at(startDay, startHour, 0),
		EndTime:     at(startDay, startHour+1, 0),
		ServiceType: "consultation",
	})
	require.NoError(t, err)
	return appt
}

func TestCreateAppointmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	input := AppointmentCreateInput{
		OperatorID:  f.operator.ID,
		ClientID:    f.client.ID,
		StartTime:   at(22, 9, 0),
		EndTime:     at(22, 10, 0),
		ServiceType: "haircut",
		Status:      domain.AppointmentStatusConfirmed,
		Notes:       "first visit",
	}

	created, err := f.appointments.Create(ctx, f.admin.ID, input)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := f.appointments.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, input.OperatorID, got.OperatorID)
	assert.Equal(t, input.ClientID, got.ClientID)
	assert.True(t, input.StartTime.Equal(got.StartTime))
	assert.True(t, input.EndTime.Equal(got.EndTime))
	assert.Equal(t, input.ServiceType, got.ServiceType)
	assert.Equal(t, input.Status, got.Status)
	assert.Equal(t, input.Notes, got.Notes)

	sent := f.queue.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.client.Phone, sent[0].Phone)
	assert.Contains(t, sent[0].Body, "22/10/2026 09:00")
}

func TestCreateAppointmentDefaultsToPending(t *testing.T) {
	f := newFixture(t)
	appt := f.createAppointment(t, f.operator.ID, f.client2.ID, 22, 9)
	assert.Equal(t, domain.AppointmentStatusPending, appt.Status)
	// client2 has no phone
	assert.Empty(t, f.queue.sent())
}

func TestCreateAppointmentUnknownClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.appointments.Create(ctx, f.admin.ID, AppointmentCreateInput{
		OperatorID: f.operator.ID, ClientID: 999, StartTime: at(22, 9, 0), EndTime: at(22, 10, 0),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidReference))

	all, err := f.store.Appointments.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.appointments.Create(context.Background(), f.admin.ID, AppointmentCreateInput{
		OperatorID: f.operator.ID, ClientID: f.client.ID, StartTime: at(22, 10, 0), EndTime: at(22, 9, 0),
	})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Contains(t, apperrors.ToDomainError(err).Details, "end_time")
}

func TestCreateAppointmentRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)

	_, err := f.appointments.Create(ctx, f.admin.ID, AppointmentCreateInput{
		OperatorID: f.operator.ID, ClientID: f.client2.ID, StartTime: at(22, 9, 30), EndTime: at(22, 10, 30),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	// another operator is free at the same time
	_, err = f.appointments.Create(ctx, f.otherAdmin.ID, AppointmentCreateInput{
		OperatorID: f.operator2.ID, ClientID: f.client2.ID, StartTime: at(22, 9, 30), EndTime: at(22, 10, 30),
	})
	assert.NoError(t, err)
}

func TestCreateAppointmentOverlapCheckDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.appointments = NewAppointmentService(config.ScheduleConfig{EnforceAppointmentOverlap: false}, AppointmentDependencies{
		UserRepo:        f.store.Users,
		AppointmentRepo: f.store.Appointments,
	})
	f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)
	f.createAppointment(t, f.operator.ID, f.client2.ID, 22, 9)

	all, err := f.store.Appointments.ListByOperator(ctx, f.operator.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateAppointmentConcurrentBookingsSerialize(t *testing.T) {
	f := newFixture(t)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.appointments.Create(context.Background(), f.admin.ID, AppointmentCreateInput{
				OperatorID: f.operator.ID, ClientID: f.client2.ID, StartTime: at(22, 9, 0), EndTime: at(22, 10, 0),
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "got %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestCreateAppointmentNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.queue.reject = true
	appt := f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)
	assert.NotZero(t, appt.ID)
}

func TestUpdateAppointmentPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)

	status := domain.AppointmentStatusCompleted
	updated, err := f.appointments.Update(ctx, f.admin.ID, appt.ID, AppointmentPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, status, updated.Status)
	assert.Equal(t, "consultation", updated.ServiceType)
	assert.True(t, appt.StartTime.Equal(updated.StartTime))

	sent := f.queue.sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Body, "completed")

	// time change without a status change does not notify
	end := at(22, 11, 0)
	_, err = f.appointments.Update(ctx, f.admin.ID, appt.ID, AppointmentPatch{EndTime: &end})
	require.NoError(t, err)
	assert.Len(t, f.queue.sent(), 2)
}

func TestUpdateAppointmentChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)
	second := f.createAppointment(t, f.operator.ID, f.client2.ID, 22, 11)

	_, err := f.appointments.Update(ctx, f.admin.ID, 404, AppointmentPatch{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	start := at(22, 10, 30)
	_, err = f.appointments.Update(ctx, f.admin.ID, second.ID, AppointmentPatch{StartTime: &start})
	assert.NoError(t, err, "moving within free time must not clash with itself")

	start = at(22, 9, 30)
	_, err = f.appointments.Update(ctx, f.admin.ID, second.ID, AppointmentPatch{StartTime: &start})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	end := at(22, 8, 0)
	_, err = f.appointments.Update(ctx, f.admin.ID, first.ID, AppointmentPatch{EndTime: &end})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	stored, err := f.store.Appointments.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, at(22, 10, 0), stored.EndTime)
}

func TestDeleteAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)

	require.NoError(t, f.appointments.Delete(ctx, f.admin.ID, appt.ID))
	assert.True(t, apperrors.HasCode(f.appointments.Delete(ctx, f.admin.ID, appt.ID), apperrors.CodeNotFound))
	_, err := f.appointments.Get(ctx, appt.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListAndStatsScopedToAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)
	appt := f.createAppointment(t, f.operator.ID, f.client.ID, 23, 9)
	f.createAppointment(t, f.operator2.ID, f.client2.ID, 22, 9)

	cancelled := domain.AppointmentStatusCancelled
	_, err := f.appointments.Update(ctx, f.admin.ID, appt.ID, AppointmentPatch{Status: &cancelled})
	require.NoError(t, err)

	mine, err := f.appointments.List(ctx, AppointmentQuery{AdminID: &f.admin.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	stats, err := f.appointments.Stats(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.AppointmentStatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.AppointmentStatusCancelled])
	assert.Contains(t, stats.ByStatus, domain.AppointmentStatusConfirmed)

	lonely := f.addUser(t, "admin3", domain.RoleAdmin, nil, "")
	empty, err := f.appointments.Stats(ctx, lonely.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestSendRemindersForTomorrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createAppointment(t, f.operator.ID, f.client.ID, 20, 16)  // today
	f.createAppointment(t, f.operator.ID, f.client.ID, 21, 9)   // tomorrow
	f.createAppointment(t, f.operator.ID, f.client2.ID, 21, 11) // tomorrow, no phone
	f.createAppointment(t, f.operator.ID, f.client.ID, 22, 9)   // day after
	before := len(f.queue.sent())

	count, err := f.appointments.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sent := f.queue.sent()[before:]
	require.Len(t, sent, 1)
	assert.Equal(t, "Reminder: you have an appointment tomorrow at 09:00", sent[0].Body)
}

func TestCreateAppointmentWaitsForOperatorLock(t *testing.T) {
	f := newFixture(t)
	locker := persistence.NewLocalLocker()
	f.appointments = NewAppointmentService(config.ScheduleConfig{EnforceAppointmentOverlap: true}, AppointmentDependencies{
		UserRepo:        f.store.Users,
		AppointmentRepo: f.store.Appointments,
		Locker:          locker,
	})
	key := "operator:" + strconv.FormatInt(f.operator.ID, 10)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), key, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	input := AppointmentCreateInput{
		OperatorID: f.operator.ID, ClientID: f.client.ID, StartTime: at(22, 9, 0), EndTime: at(22, 10, 0),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := f.appointments.Create(ctx, f.admin.ID, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout), "got %v", err)

	done := make(chan error, 1)
	go func() {
		_, err := f.appointments.Create(context.Background(), f.admin.ID, input)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	assert.NoError(t, <-done)
}

// slowAppointments widens the window between the overlap check and the insert.
type slowAppointments struct {
	repository.AppointmentRepository
	delay time.Duration
}

func (r slowAppointments) Create(ctx context.Context, appt *domain.Appointment) error {
	time.Sleep(r.delay)
	return r.AppointmentRepository.Create(ctx, appt)
}

func TestConcurrentDisjointBookingsAllSucceed(t *testing.T) {
	for _, enforce := range []bool{true, false} {
		t.Run(fmt.Sprintf("enforce_overlap=%v", enforce), func(t *testing.T) {
			f := newFixture(t)
			f.appointments = NewAppointmentService(config.ScheduleConfig{EnforceAppointmentOverlap: enforce}, AppointmentDependencies{
				UserRepo:        f.store.Users,
				AppointmentRepo: slowAppointments{AppointmentRepository: f.store.Appointments, delay: 20 * time.Millisecond},
				Locker:          persistence.NewLocalLocker(),
			})

			const bookings = 5
			errs := make(chan error, bookings)
			var wg sync.WaitGroup
			for i := 0; i < bookings; i++ {
				wg.Add(1)
				go func(hour int) {
					defer wg.Done()
					_, err := f.appointments.Create(context.Background(), f.admin.ID, AppointmentCreateInput{
						OperatorID: f.operator.ID, ClientID: f.client2.ID,
						StartTime: at(22, hour, 0), EndTime: at(22, hour+1, 0),
					})
					errs <- err
				}(8 + i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				assert.NoError(t, err)
			}
			all, err := f.store.Appointments.ListByOperator(context.Background(), f.operator.ID)
			require.NoError(t, err)
			assert.Len(t, all, bookings)
		})
	}
}

func TestAppointmentsOfAnotherAdminsOperatorAreForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	foreign := f.createAppointment(t, f.operator2.ID, f.client2.ID, 22, 9)

	_, err := f.appointments.Create(ctx, f.admin.ID, AppointmentCreateInput{
		OperatorID: f.operator2.ID, ClientID: f.client.ID, StartTime: at(23, 9, 0), EndTime: at(23, 10, 0),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "create: %v", err)

	_, err = f.appointments.GetForAdmin(ctx, f.admin.ID, foreign.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "get: %v", err)

	notes := "moved"
	_, err = f.appointments.Update(ctx, f.admin.ID, foreign.ID, AppointmentPatch{Notes: &notes})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "update: %v", err)

	err = f.appointments.Delete(ctx, f.admin.ID, foreign.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "delete: %v", err)

	stored, err := f.store.Appointments.GetByID(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Notes)

	got, err := f.appointments.GetForAdmin(ctx, f.otherAdmin.ID, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, foreign.ID, got.ID)
	require.NoError(t, f.appointments.Delete(ctx, f.otherAdmin.ID, foreign.ID))
}

func TestListForOperatorDefaultWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createAppointment(t, f.operator.ID, f.client.ID, 19, 9) // yesterday
	today := f.createAppointment(t, f.operator.ID, f.client.ID, 20, 8)
	later := f.createAppointment(t, f.operator.ID, f.client.ID, 30, 9)
	f.createAppointment(t, f.operator2.ID, f.client2.ID, 21, 9)

	appts, err := f.appointments.ListForOperator(ctx, f.operator.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, today.ID, appts[0].ID)
	assert.Equal(t, later.ID, appts[1].ID)

	from, to := at(25, 0, 0), at(31, 0, 0)
	appts, err = f.appointments.ListForOperator(ctx, f.operator.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, later.ID, appts[0].ID)

	_, err = f.appointments.ListForOperator(ctx, f.operator.ID, &to, &from)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestListForClientNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.createAppointment(t, f.operator.ID, f.client.ID, 21, 9)
	second := f.createAppointment(t, f.operator.ID, f.client.ID, 23, 9)
	f.createAppointment(t, f.operator.ID, f.client2.ID, 22, 9)

	appts, err := f.appointments.ListForClient(context.Background(), f.client.ID)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, second.ID, appts[0].ID)
	assert.Equal(t, first.ID, appts[1].ID)
}
