package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/booking-service/internal/domain"
)

// SlotFilter narrows slot listings. Nil fields are ignored.
type SlotFilter struct {
	OperatorID *int64
	Status     *domain.SlotStatus
	DayOfWeek  *time.Weekday
}

// SlotRepository encapsulates recurring slot persistence.
type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) error
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
	List(ctx context.Context, filter SlotFilter) ([]domain.Slot, error)
	ListByOperator(ctx context.Context, operatorID int64) ([]domain.Slot, error)
	ListByStatus(ctx context.Context, status domain.SlotStatus) ([]domain.Slot, error)
	ListAll(ctx context.Context) ([]domain.Slot, error)
	// ListOverlapping returns the operator's slots on day whose hours intersect [start, end).
	ListOverlapping(ctx context.Context, operatorID int64, day time.Weekday, start, end domain.TimeOfDay) ([]domain.Slot, error)
	// UpdateStatus moves a slot from one status to another and returns
	// pgx.ErrNoRows when no slot with that id is currently in status from.
	UpdateStatus(ctx context.Context, id int64, from, to domain.SlotStatus) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	DeleteByOperator(ctx context.Context, operatorID int64) error
}

var slotColumns = []string{
	"id", "operator_id", "client_id", "day_of_week", "start_time", "end_time",
	"status", "is_active", "created_at",
}

type slotRepository struct {
	pool *pgxpool.Pool
}

// NewSlotRepository instantiates the repository.
func NewSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &slotRepository{pool: pool}
}

func (r *slotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	const query = `
        INSERT INTO slots (operator_id, client_id, day_of_week, start_time, end_time, status, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		slot.OperatorID,
		slot.ClientID,
		int16(slot.DayOfWeek),
		toPgTime(slot.StartTime),
		toPgTime(slot.EndTime),
		string(slot.Status),
		slot.IsActive,
	).Scan(&slot.ID, &slot.CreatedAt)
}

func (r *slotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	query, args, err := psql.Select(slotColumns...).From("slots").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanSlot(r.pool.QueryRow(ctx, query, args...))
}

func (r *slotRepository) List(ctx context.Context, filter SlotFilter) ([]domain.Slot, error) {
	builder := psql.Select(slotColumns...).From("slots").OrderBy("id")
	if filter.OperatorID != nil {
		builder = builder.Where(sq.Eq{"operator_id": *filter.OperatorID})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.DayOfWeek != nil {
		builder = builder.Where(sq.Eq{"day_of_week": int16(*filter.DayOfWeek)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *slotRepository) query(ctx context.Context, query string, args ...any) ([]domain.Slot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *slot)
	}
	return result, rows.Err()
}

func (r *slotRepository) ListByOperator(ctx context.Context, operatorID int64) ([]domain.Slot, error) {
	return r.List(ctx, SlotFilter{OperatorID: &operatorID})
}

func (r *slotRepository) ListByStatus(ctx context.Context, status domain.SlotStatus) ([]domain.Slot, error) {
	return r.List(ctx, SlotFilter{Status: &status})
}

func (r *slotRepository) ListAll(ctx context.Context) ([]domain.Slot, error) {
	return r.List(ctx, SlotFilter{})
}

func (r *slotRepository) ListOverlapping(ctx context.Context, operatorID int64, day time.Weekday, start, end domain.TimeOfDay) ([]domain.Slot, error) {
	query, args, err := psql.Select(slotColumns...).From("slots").
		Where(sq.Eq{"operator_id": operatorID, "day_of_week": int16(day)}).
		Where(sq.Lt{"start_time": toPgTime(end)}).
		Where(sq.Gt{"end_time": toPgTime(start)}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *slotRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.SlotStatus) error {
	const query = `UPDATE slots SET status=$1 WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slotRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE slots SET is_active=$1 WHERE id=$2`, active, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slotRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slotRepository) DeleteByOperator(ctx context.Context, operatorID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE operator_id=$1`, operatorID)
	return err
}

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var (
		slot       domain.Slot
		day        int16
		start, end pgtype.Time
		status     string
	)
	if err := row.Scan(
		&slot.ID,
		&slot.OperatorID,
		&slot.ClientID,
		&day,
		&start,
		&end,
		&status,
		&slot.IsActive,
		&slot.CreatedAt,
	); err != nil {
		return nil, err
	}
	slot.DayOfWeek = time.Weekday(day)
	slot.StartTime = fromPgTime(start)
	slot.EndTime = fromPgTime(end)
	slot.Status = domain.SlotStatus(status)
	return &slot, nil
}

func toPgTime(t domain.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func fromPgTime(t pgtype.Time) domain.TimeOfDay {
	return domain.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}
