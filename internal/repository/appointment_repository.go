package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/booking-service/internal/domain"
)

// AppointmentFilter narrows appointment listings. Zero values are ignored.
// OperatorIDs restricts results to any of the given operators; a non-nil
// empty slice matches nothing.
type AppointmentFilter struct {
	OperatorIDs []int64
	OperatorID  *int64
	ClientID    *int64
	Status      *domain.AppointmentStatus
	StartFrom   *time.Time
	StartTo     *time.Time
}

// AppointmentRepository handles concrete booking persistence.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	GetByID(ctx context.Context, id int64) (*domain.Appointment, error)
	Update(ctx context.Context, appt *domain.Appointment) error
	Delete(ctx context.Context, id int64) error
	DeleteByOperator(ctx context.Context, operatorID int64) error
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
	ListAll(ctx context.Context) ([]domain.Appointment, error)
	ListByOperator(ctx context.Context, operatorID int64) ([]domain.Appointment, error)
	ListByClient(ctx context.Context, clientID int64) ([]domain.Appointment, error)
	// ListOverlapping returns the operator's appointments intersecting
	// [start, end), ignoring excludeID when it is non-zero.
	ListOverlapping(ctx context.Context, operatorID int64, start, end time.Time, excludeID int64) ([]domain.Appointment, error)
	// ListStartingBetween returns appointments with from <= start_time < to.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	// CountByStatus counts appointments per status for the given operators.
	CountByStatus(ctx context.Context, operatorIDs []int64) (map[domain.AppointmentStatus]int, error)
}

var appointmentColumns = []string{
	"id", "client_id", "operator_id", "start_time", "end_time",
	"service_type", "status", "notes", "created_at",
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository creates a repository.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

func (r *appointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (client_id, operator_id, start_time, end_time, service_type, status, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		appt.ClientID,
		appt.OperatorID,
		appt.StartTime,
		appt.EndTime,
		appt.ServiceType,
		string(appt.Status),
		appt.Notes,
	).Scan(&appt.ID, &appt.CreatedAt)
}

func (r *appointmentRepository) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	query, args, err := psql.Select(appointmentColumns...).From("appointments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanAppointment(r.pool.QueryRow(ctx, query, args...))
}

func (r *appointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        UPDATE appointments SET client_id=$1, operator_id=$2, start_time=$3, end_time=$4,
            service_type=$5, status=$6, notes=$7
        WHERE id=$8`
	cmd, err := r.pool.Exec(ctx, query,
		appt.ClientID,
		appt.OperatorID,
		appt.StartTime,
		appt.EndTime,
		appt.ServiceType,
		string(appt.Status),
		appt.Notes,
		appt.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepository) DeleteByOperator(ctx context.Context, operatorID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE operator_id=$1`, operatorID)
	return err
}

func (r *appointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	builder := psql.Select(appointmentColumns...).From("appointments").OrderBy("start_time", "id")
	if filter.OperatorIDs != nil {
		if len(filter.OperatorIDs) == 0 {
			return nil, nil
		}
		builder = builder.Where(sq.Eq{"operator_id": filter.OperatorIDs})
	}
	if filter.OperatorID != nil {
		builder = builder.Where(sq.Eq{"operator_id": *filter.OperatorID})
	}
	if filter.ClientID != nil {
		builder = builder.Where(sq.Eq{"client_id": *filter.ClientID})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.StartFrom != nil {
		builder = builder.Where(sq.GtOrEq{"start_time": *filter.StartFrom})
	}
	if filter.StartTo != nil {
		builder = builder.Where(sq.Lt{"start_time": *filter.StartTo})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *appointmentRepository) ListAll(ctx context.Context) ([]domain.Appointment, error) {
	return r.List(ctx, AppointmentFilter{})
}

func (r *appointmentRepository) ListByOperator(ctx context.Context, operatorID int64) ([]domain.Appointment, error) {
	return r.List(ctx, AppointmentFilter{OperatorID: &operatorID})
}

func (r *appointmentRepository) ListByClient(ctx context.Context, clientID int64) ([]domain.Appointment, error) {
	return r.List(ctx, AppointmentFilter{ClientID: &clientID})
}

func (r *appointmentRepository) ListOverlapping(ctx context.Context, operatorID int64, start, end time.Time, excludeID int64) ([]domain.Appointment, error) {
	builder := psql.Select(appointmentColumns...).From("appointments").
		Where(sq.Eq{"operator_id": operatorID}).
		Where(sq.Lt{"start_time": end}).
		Where(sq.Gt{"end_time": start}).
		OrderBy("start_time")
	if excludeID != 0 {
		builder = builder.Where(sq.NotEq{"id": excludeID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *appointmentRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	return r.List(ctx, AppointmentFilter{StartFrom: &from, StartTo: &to})
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, operatorIDs []int64) (map[domain.AppointmentStatus]int, error) {
	counts := make(map[domain.AppointmentStatus]int)
	if len(operatorIDs) == 0 {
		return counts, nil
	}

	query, args, err := psql.Select("status", "COUNT(*)").From("appointments").
		Where(sq.Eq{"operator_id": operatorIDs}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.AppointmentStatus(status)] = int(count)
	}
	return counts, rows.Err()
}

func (r *appointmentRepository) query(ctx context.Context, query string, args ...any) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *appt)
	}
	return result, rows.Err()
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var (
		appt   domain.Appointment
		status string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.OperatorID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.ServiceType,
		&status,
		&appt.Notes,
		&appt.CreatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = domain.AppointmentStatus(status)
	return &appt, nil
}
