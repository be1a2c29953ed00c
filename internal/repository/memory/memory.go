// Package memory provides map-backed repositories used when no Postgres DSN
// is configured and as the backend for service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/repository"
)

const uniqueViolation = "23505"

// Store bundles one repository of each kind.
type Store struct {
	Users        *UserRepository
	Slots        *SlotRepository
	Appointments *AppointmentRepository
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Users:        NewUserRepository(),
		Slots:        NewSlotRepository(),
		Appointments: NewAppointmentRepository(),
	}
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	seq   int64
	users map[int64]domain.User
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]domain.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(user); err != nil {
		return err
	}
	r.seq++
	user.ID = r.seq
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if err := r.checkUnique(user); err != nil {
		return err
	}
	stored := copyUser(user)
	stored.CreatedAt = existing.CreatedAt
	r.users[user.ID] = stored
	return nil
}

func (r *UserRepository) checkUnique(user *domain.User) error {
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username {
			return &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"}
		}
		if u.Email == user.Email {
			return &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}
		}
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.find(ctx, func(u *domain.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(ctx, func(u *domain.User) bool { return u.Username == username })
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(ctx, func(u *domain.User) bool { return u.Email == email })
}

func (r *UserRepository) find(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(&u) {
			found := copyUser(&u)
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *UserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.AdminID != nil && !u.OwnedBy(*filter.AdminID) {
			continue
		}
		result = append(result, copyUser(&u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func copyUser(u *domain.User) domain.User {
	c := *u
	c.AdminID = cloneID(u.AdminID)
	return c
}

// SlotRepository is an in-memory repository.SlotRepository.
type SlotRepository struct {
	mu    sync.RWMutex
	seq   int64
	slots map[int64]domain.Slot
}

var _ repository.SlotRepository = (*SlotRepository)(nil)

// NewSlotRepository creates an empty slot repository.
func NewSlotRepository() *SlotRepository {
	return &SlotRepository{slots: make(map[int64]domain.Slot)}
}

func (r *SlotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	slot.ID = r.seq
	slot.CreatedAt = time.Now().UTC()
	r.slots[slot.ID] = copySlot(slot)
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	found := copySlot(&s)
	return &found, nil
}

func (r *SlotRepository) List(ctx context.Context, filter repository.SlotFilter) ([]domain.Slot, error) {
	return r.filter(ctx, func(s *domain.Slot) bool {
		if filter.OperatorID != nil && s.OperatorID != *filter.OperatorID {
			return false
		}
		if filter.Status != nil && s.Status != *filter.Status {
			return false
		}
		if filter.DayOfWeek != nil && s.DayOfWeek != *filter.DayOfWeek {
			return false
		}
		return true
	})
}

func (r *SlotRepository) ListByOperator(ctx context.Context, operatorID int64) ([]domain.Slot, error) {
	return r.List(ctx, repository.SlotFilter{OperatorID: &operatorID})
}

func (r *SlotRepository) ListByStatus(ctx context.Context, status domain.SlotStatus) ([]domain.Slot, error) {
	return r.List(ctx, repository.SlotFilter{Status: &status})
}

func (r *SlotRepository) ListAll(ctx context.Context) ([]domain.Slot, error) {
	return r.List(ctx, repository.SlotFilter{})
}

func (r *SlotRepository) ListOverlapping(ctx context.Context, operatorID int64, day time.Weekday, start, end domain.TimeOfDay) ([]domain.Slot, error) {
	candidate := domain.Slot{OperatorID: operatorID, DayOfWeek: day, StartTime: start, EndTime: end}
	return r.filter(ctx, func(s *domain.Slot) bool {
		return s.OperatorID == operatorID && s.Overlaps(&candidate)
	})
}

func (r *SlotRepository) filter(ctx context.Context, keep func(*domain.Slot) bool) ([]domain.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Slot
	for _, s := range r.slots {
		if keep(&s) {
			result = append(result, copySlot(&s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *SlotRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.SlotStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok || s.Status != from {
		return pgx.ErrNoRows
	}
	s.Status = to
	r.slots[id] = s
	return nil
}

func (r *SlotRepository) SetActive(ctx context.Context, id int64, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.IsActive = active
	r.slots[id] = s
	return nil
}

func (r *SlotRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.slots, id)
	return nil
}

func (r *SlotRepository) DeleteByOperator(ctx context.Context, operatorID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.slots {
		if s.OperatorID == operatorID {
			delete(r.slots, id)
		}
	}
	return nil
}

func copySlot(s *domain.Slot) domain.Slot {
	c := *s
	c.ClientID = cloneID(s.ClientID)
	return c
}

// AppointmentRepository is an in-memory repository.AppointmentRepository.
type AppointmentRepository struct {
	mu           sync.RWMutex
	seq          int64
	appointments map[int64]domain.Appointment
}

var _ repository.AppointmentRepository = (*AppointmentRepository)(nil)

// NewAppointmentRepository creates an empty appointment repository.
func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[int64]domain.Appointment)}
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	appt.ID = r.seq
	appt.CreatedAt = time.Now().UTC()
	r.appointments[appt.ID] = *appt
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[appt.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	updated := *appt
	updated.CreatedAt = existing.CreatedAt
	r.appointments[appt.ID] = updated
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.appointments, id)
	return nil
}

func (r *AppointmentRepository) DeleteByOperator(ctx context.Context, operatorID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range r.appointments {
		if a.OperatorID == operatorID {
			delete(r.appointments, id)
		}
	}
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, filter repository.AppointmentFilter) ([]domain.Appointment, error) {
	var operators map[int64]struct{}
	if filter.OperatorIDs != nil {
		operators = make(map[int64]struct{}, len(filter.OperatorIDs))
		for _, id := range filter.OperatorIDs {
			operators[id] = struct{}{}
		}
	}
	return r.filter(ctx, func(a *domain.Appointment) bool {
		if operators != nil {
			if _, ok := operators[a.OperatorID]; !ok {
				return false
			}
		}
		if filter.OperatorID != nil && a.OperatorID != *filter.OperatorID {
			return false
		}
		if filter.ClientID != nil && a.ClientID != *filter.ClientID {
			return false
		}
		if filter.Status != nil && a.Status != *filter.Status {
			return false
		}
		if filter.StartFrom != nil && a.StartTime.Before(*filter.StartFrom) {
			return false
		}
		if filter.StartTo != nil && !a.StartTime.Before(*filter.StartTo) {
			return false
		}
		return true
	})
}

func (r *AppointmentRepository) ListAll(ctx context.Context) ([]domain.Appointment, error) {
	return r.List(ctx, repository.AppointmentFilter{})
}

func (r *AppointmentRepository) ListByOperator(ctx context.Context, operatorID int64) ([]domain.Appointment, error) {
	return r.List(ctx, repository.AppointmentFilter{OperatorID: &operatorID})
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID int64) ([]domain.Appointment, error) {
	return r.List(ctx, repository.AppointmentFilter{ClientID: &clientID})
}

func (r *AppointmentRepository) ListOverlapping(ctx context.Context, operatorID int64, start, end time.Time, excludeID int64) ([]domain.Appointment, error) {
	return r.filter(ctx, func(a *domain.Appointment) bool {
		if a.OperatorID != operatorID || (excludeID != 0 && a.ID == excludeID) {
			return false
		}
		return a.Overlaps(start, end)
	})
}

func (r *AppointmentRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	return r.List(ctx, repository.AppointmentFilter{StartFrom: &from, StartTo: &to})
}

func (r *AppointmentRepository) CountByStatus(ctx context.Context, operatorIDs []int64) (map[domain.AppointmentStatus]int, error) {
	appts, err := r.List(ctx, repository.AppointmentFilter{OperatorIDs: operatorIDs})
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.AppointmentStatus]int)
	for _, a := range appts {
		counts[a.Status]++
	}
	return counts, nil
}

func (r *AppointmentRepository) filter(ctx context.Context, keep func(*domain.Appointment) bool) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Appointment
	for _, a := range r.appointments {
		if keep(&a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
