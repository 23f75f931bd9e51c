package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const attendanceColumns = `
	a.id, a.employee_id, a.shift_id, a.check_in_time, a.check_out_time, a.timezone,
	a.device_info, a.latitude, a.longitude,
	a.work_hours, a.regular_hours, a.overtime_hours, a.overtime_double_hours,
	a.break_hours, a.earned_salary,
	a.created_at, a.updated_at,
	e.name AS employee_name,
	s.name AS shift_name`

const attendanceFrom = `
	FROM attendances a
	LEFT JOIN employees e ON e.id = a.employee_id
	LEFT JOIN shifts s ON s.id = a.shift_id`

type attendanceRepository struct {
	db *database.DB
}

func scanAttendance(row pgx.Row) (attendance.Attendance, error) {
	var (
		att                                        attendance.Attendance
		work, regular, overtime, double, brk, paid decimal.NullDecimal
	)
	err := row.Scan(
		&att.ID, &att.EmployeeID, &att.ShiftID, &att.CheckInTime, &att.CheckOutTime, &att.Timezone,
		&att.DeviceInfo, &att.Latitude, &att.Longitude,
		&work, &regular, &overtime, &double,
		&brk, &paid,
		&att.CreatedAt, &att.UpdatedAt,
		&att.EmployeeName,
		&att.ShiftName,
	)
	if err != nil {
		return attendance.Attendance{}, err
	}
	att.WorkHours = nullDecimalPtr(work)
	att.RegularHours = nullDecimalPtr(regular)
	att.OvertimeHours = nullDecimalPtr(overtime)
	att.OvertimeDoubleHours = nullDecimalPtr(double)
	att.BreakHours = nullDecimalPtr(brk)
	att.EarnedSalary = nullDecimalPtr(paid)
	return att, nil
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// LockEmployee implements attendance.AttendanceRepository.
func (a *attendanceRepository) LockEmployee(ctx context.Context, employeeID int64) error {
	q := GetQuerier(ctx, a.db)

	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM employees WHERE id = $1 FOR UPDATE`, employeeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.ErrEmployeeNotFound
		}
		return fmt.Errorf("failed to lock employee: %w", err)
	}
	return nil
}

// LatestSince implements attendance.AttendanceRepository.
func (a *attendanceRepository) LatestSince(ctx context.Context, employeeID int64, since time.Time) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + attendanceFrom + `
		WHERE a.employee_id = $1
		  AND a.check_in_time >= $2
		ORDER BY a.check_in_time DESC, a.id DESC
		LIMIT 1
		FOR UPDATE OF a`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest attendance: %w", err)
	}
	return &att, nil
}

// LatestOpenBetween implements attendance.AttendanceRepository.
func (a *attendanceRepository) LatestOpenBetween(ctx context.Context, employeeID int64, from, to time.Time) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + attendanceFrom + `
		WHERE a.employee_id = $1
		  AND a.check_out_time IS NULL
		  AND a.check_in_time >= $2
		  AND a.check_in_time < $3
		ORDER BY a.check_in_time DESC, a.id DESC
		LIMIT 1
		FOR UPDATE OF a`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open attendance: %w", err)
	}
	return &att, nil
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, newAttendance attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendances (
			employee_id, shift_id, check_in_time, check_out_time, timezone,
			device_info, latitude, longitude,
			work_hours, regular_hours, overtime_hours, overtime_double_hours,
			break_hours, earned_salary
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		newAttendance.EmployeeID,
		newAttendance.ShiftID,
		newAttendance.CheckInTime,
		newAttendance.CheckOutTime,
		newAttendance.Timezone,
		newAttendance.DeviceInfo,
		newAttendance.Latitude,
		newAttendance.Longitude,
		newAttendance.WorkHours,
		newAttendance.RegularHours,
		newAttendance.OvertimeHours,
		newAttendance.OvertimeDoubleHours,
		newAttendance.BreakHours,
		newAttendance.EarnedSalary,
	).Scan(&newAttendance.ID, &newAttendance.CreatedAt, &newAttendance.UpdatedAt)

	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return newAttendance, nil
}

// Close implements attendance.AttendanceRepository.
func (a *attendanceRepository) Close(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendances SET
			check_out_time = $2,
			work_hours = $3,
			regular_hours = $4,
			overtime_hours = $5,
			overtime_double_hours = $6,
			break_hours = $7,
			earned_salary = $8,
			updated_at = NOW()
		WHERE id = $1 AND check_out_time IS NULL
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		att.ID,
		att.CheckOutTime,
		att.WorkHours,
		att.RegularHours,
		att.OvertimeHours,
		att.OvertimeDoubleHours,
		att.BreakHours,
		att.EarnedSalary,
	).Scan(&att.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrNoOpenAttendance
		}
		return attendance.Attendance{}, fmt.Errorf("failed to close attendance: %w", err)
	}

	return att, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id int64) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + attendanceFrom + ` WHERE a.id = $1`

	att, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance by ID: %w", err)
	}

	return att, nil
}

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, a.db)

	// Build WHERE clause
	baseWhere := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil {
		baseWhere += fmt.Sprintf(" AND a.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.DepartmentID != nil {
		baseWhere += fmt.Sprintf(" AND e.department_id = $%d", argIdx)
		args = append(args, *filter.DepartmentID)
		argIdx++
	}
	if filter.From != nil {
		baseWhere += fmt.Sprintf(" AND a.check_in_time >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		baseWhere += fmt.Sprintf(" AND a.check_in_time < $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}
	if filter.Status != nil {
		switch *filter.Status {
		case "open":
			baseWhere += " AND a.check_out_time IS NULL"
		case "closed":
			baseWhere += " AND a.check_out_time IS NOT NULL"
		}
	}

	// Count total
	countQuery := "SELECT COUNT(*)" + attendanceFrom + " WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	selectQuery := fmt.Sprintf(`SELECT %s %s
		WHERE %s
		ORDER BY a.check_in_time DESC, a.id DESC
		LIMIT $%d OFFSET $%d`, attendanceColumns, attendanceFrom, baseWhere, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return attendances, total, nil
}

// ListStaleOpen implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + attendanceFrom + `
		WHERE a.check_out_time IS NULL
		  AND a.check_in_time < $1
		ORDER BY a.check_in_time
		LIMIT $2`

	rows, err := q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale attendances: %w", err)
	}
	defer rows.Close()

	var stale []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		stale = append(stale, att)
	}
	return stale, rows.Err()
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}
