package report

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/shopspring/decimal"
)

// AttendanceRow is a stored attendance with the shift fields reports need.
type AttendanceRow struct {
	AttendanceID int64
	EmployeeID   int64
	CheckIn      time.Time
	CheckOut     *time.Time
	WorkHours    *decimal.Decimal
	EarnedSalary *decimal.Decimal
	ShiftName    *string
	ShiftStart   *shift.TimeOfDay
	ShiftEnd     *shift.TimeOfDay
}

type Totals struct {
	WorkHours decimal.Decimal
	Salary    decimal.Decimal
}

// ReportRepository reads stored calculator output. All windows are [from, to)
// on check_in_time; a nil department means every department.
type ReportRepository interface {
	// ClosedAttendances returns closed rows ordered by employee then check-in.
	ClosedAttendances(ctx context.Context, from, to time.Time, departmentID *int64) ([]AttendanceRow, error)

	// EmployeeAttendances returns open and closed rows of one employee ordered by check-in.
	EmployeeAttendances(ctx context.Context, employeeID int64, from, to time.Time) ([]AttendanceRow, error)

	CountClosed(ctx context.Context, from, to time.Time, departmentID *int64) (int, error)
	CountEmployeesWorked(ctx context.Context, from, to time.Time, departmentID *int64) (int, error)
	SumClosed(ctx context.Context, from, to time.Time, departmentID *int64) (Totals, error)

	CountEmployees(ctx context.Context) (int, error)

	// CountCheckIns counts open and closed rows in the window.
	CountCheckIns(ctx context.Context, from, to time.Time) (int, error)

	// AttendedEmployeeIDs returns the distinct employees with a check-in in the window.
	AttendedEmployeeIDs(ctx context.Context, from, to time.Time, departmentID *int64) ([]int64, error)
}
