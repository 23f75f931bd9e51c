package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type reportRepositoryImpl struct {
	db *database.DB
}

func NewReportRepository(db *database.DB) report.ReportRepository {
	return &reportRepositoryImpl{db: db}
}

// reportWhere builds the window and department filter shared by every report query.
func reportWhere(from, to time.Time, departmentID *int64) (string, []interface{}) {
	where := "a.check_in_time >= $1 AND a.check_in_time < $2"
	args := []interface{}{from, to}
	if departmentID != nil {
		where += " AND e.department_id = $3"
		args = append(args, *departmentID)
	}
	return where, args
}

func (r *reportRepositoryImpl) queryRows(ctx context.Context, query string, args ...interface{}) ([]report.AttendanceRow, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer rows.Close()

	var result []report.AttendanceRow
	for rows.Next() {
		var (
			row        report.AttendanceRow
			work, paid decimal.NullDecimal
			start, end pgtype.Time
		)
		err := rows.Scan(
			&row.AttendanceID, &row.EmployeeID, &row.CheckIn, &row.CheckOut,
			&work, &paid, &row.ShiftName, &start, &end,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		row.WorkHours = nullDecimalPtr(work)
		row.EarnedSalary = nullDecimalPtr(paid)
		if start.Valid {
			t := fromPgTime(start)
			row.ShiftStart = &t
		}
		if end.Valid {
			t := fromPgTime(end)
			row.ShiftEnd = &t
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

const reportRowSelect = `
	SELECT a.id, a.employee_id, a.check_in_time, a.check_out_time,
		   a.work_hours, a.earned_salary, s.name, s.start_time, s.end_time
	FROM attendances a
	JOIN employees e ON e.id = a.employee_id
	LEFT JOIN shifts s ON s.id = a.shift_id`

// ClosedAttendances implements report.ReportRepository.
func (r *reportRepositoryImpl) ClosedAttendances(ctx context.Context, from, to time.Time, departmentID *int64) ([]report.AttendanceRow, error) {
	where, args := reportWhere(from, to, departmentID)
	query := reportRowSelect + `
		WHERE ` + where + ` AND a.check_out_time IS NOT NULL
		ORDER BY a.employee_id, a.check_in_time`
	return r.queryRows(ctx, query, args...)
}

// EmployeeAttendances implements report.ReportRepository.
func (r *reportRepositoryImpl) EmployeeAttendances(ctx context.Context, employeeID int64, from, to time.Time) ([]report.AttendanceRow, error) {
	query := reportRowSelect + `
		WHERE a.employee_id = $1 AND a.check_in_time >= $2 AND a.check_in_time < $3
		ORDER BY a.check_in_time`
	return r.queryRows(ctx, query, employeeID, from, to)
}

// CountClosed implements report.ReportRepository.
func (r *reportRepositoryImpl) CountClosed(ctx context.Context, from, to time.Time, departmentID *int64) (int, error) {
	q := GetQuerier(ctx, r.db)

	where, args := reportWhere(from, to, departmentID)
	query := `SELECT COUNT(*) FROM attendances a JOIN employees e ON e.id = a.employee_id
		WHERE ` + where + ` AND a.check_out_time IS NOT NULL`

	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attendances: %w", err)
	}
	return n, nil
}

// CountEmployeesWorked implements report.ReportRepository.
func (r *reportRepositoryImpl) CountEmployeesWorked(ctx context.Context, from, to time.Time, departmentID *int64) (int, error) {
	q := GetQuerier(ctx, r.db)

	where, args := reportWhere(from, to, departmentID)
	query := `SELECT COUNT(DISTINCT a.employee_id) FROM attendances a JOIN employees e ON e.id = a.employee_id
		WHERE ` + where + ` AND a.check_out_time IS NOT NULL`

	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count employees worked: %w", err)
	}
	return n, nil
}

// SumClosed implements report.ReportRepository.
func (r *reportRepositoryImpl) SumClosed(ctx context.Context, from, to time.Time, departmentID *int64) (report.Totals, error) {
	q := GetQuerier(ctx, r.db)

	where, args := reportWhere(from, to, departmentID)
	query := `SELECT COALESCE(SUM(a.work_hours), 0), COALESCE(SUM(a.earned_salary), 0)
		FROM attendances a JOIN employees e ON e.id = a.employee_id
		WHERE ` + where + ` AND a.check_out_time IS NOT NULL`

	var totals report.Totals
	if err := q.QueryRow(ctx, query, args...).Scan(&totals.WorkHours, &totals.Salary); err != nil {
		return report.Totals{}, fmt.Errorf("failed to sum attendances: %w", err)
	}
	return totals, nil
}

// CountEmployees implements report.ReportRepository.
func (r *reportRepositoryImpl) CountEmployees(ctx context.Context) (int, error) {
	q := GetQuerier(ctx, r.db)

	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count employees: %w", err)
	}
	return n, nil
}

// CountCheckIns implements report.ReportRepository.
func (r *reportRepositoryImpl) CountCheckIns(ctx context.Context, from, to time.Time) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT COUNT(*) FROM attendances WHERE check_in_time >= $1 AND check_in_time < $2`

	var n int
	if err := q.QueryRow(ctx, query, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count check-ins: %w", err)
	}
	return n, nil
}

// AttendedEmployeeIDs implements report.ReportRepository.
func (r *reportRepositoryImpl) AttendedEmployeeIDs(ctx context.Context, from, to time.Time, departmentID *int64) ([]int64, error) {
	q := GetQuerier(ctx, r.db)

	where, args := reportWhere(from, to, departmentID)
	query := `SELECT DISTINCT a.employee_id FROM attendances a JOIN employees e ON e.id = a.employee_id
		WHERE ` + where + ` ORDER BY a.employee_id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attended employees: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
