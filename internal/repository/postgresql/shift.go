package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const shiftColumns = `id, name, code, start_time, end_time, latitude, longitude, radius, created_at, updated_at`

// registryLockKey is the advisory lock taken by shift registry writers.
const registryLockKey = 7_310_001

type shiftRepositoryImpl struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) shift.ShiftRepository {
	return &shiftRepositoryImpl{db: db}
}

func toPgTime(t shift.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}
}

func fromPgTime(t pgtype.Time) shift.TimeOfDay {
	return shift.TimeOfDay(t.Microseconds / 1_000_000)
}

func scanShift(row pgx.Row) (shift.Shift, error) {
	var (
		s          shift.Shift
		start, end pgtype.Time
	)
	err := row.Scan(&s.ID, &s.Name, &s.Code, &start, &end, &s.Latitude, &s.Longitude, &s.Radius, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return shift.Shift{}, err
	}
	s.StartTime, s.EndTime = fromPgTime(start), fromPgTime(end)
	return s, nil
}

// List implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) List(ctx context.Context) ([]shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+shiftColumns+` FROM shifts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []shift.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// GetByID implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) GetByID(ctx context.Context, id int64) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanShift(q.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		return shift.Shift{}, fmt.Errorf("failed to get shift by ID: %w", err)
	}
	return s, nil
}

// FindByDefinition implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) FindByDefinition(ctx context.Context, name string, start, end shift.TimeOfDay) (*shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + shiftColumns + ` FROM shifts
		WHERE name = $1 AND start_time = $2 AND end_time = $3
		ORDER BY id
		LIMIT 1`

	s, err := scanShift(q.QueryRow(ctx, query, name, toPgTime(start), toPgTime(end)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find shift by definition: %w", err)
	}
	return &s, nil
}

// CodeExists implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) CodeExists(ctx context.Context, code string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shifts WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check shift code: %w", err)
	}
	return exists, nil
}

// Create implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) Create(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO shifts (name, code, start_time, end_time, latitude, longitude, radius)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		s.Name, s.Code, toPgTime(s.StartTime), toPgTime(s.EndTime), s.Latitude, s.Longitude, s.Radius,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return shift.Shift{}, fmt.Errorf("failed to create shift: %w", err)
	}
	return s, nil
}

// Update implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) Update(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shifts
		SET name = $2, start_time = $3, end_time = $4, latitude = $5, longitude = $6, radius = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := q.QueryRow(ctx, query,
		s.ID, s.Name, toPgTime(s.StartTime), toPgTime(s.EndTime), s.Latitude, s.Longitude, s.Radius,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		return shift.Shift{}, fmt.Errorf("failed to update shift: %w", err)
	}
	return s, nil
}

// Delete implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) Delete(ctx context.Context, id int64) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shift.ErrShiftNotFound
	}
	return nil
}

// IsReferenced implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) IsReferenced(ctx context.Context, id int64) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var used bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attendances WHERE shift_id = $1)`, id).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check shift usage: %w", err)
	}
	return used, nil
}

// LockRegistry implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) LockRegistry(ctx context.Context) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey); err != nil {
		return fmt.Errorf("failed to acquire shift registry lock: %w", err)
	}
	return nil
}
