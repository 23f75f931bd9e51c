package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access for attendance records. Methods that
// lock rows only do so inside a transaction.
type AttendanceRepository interface {
	// LockEmployee takes the employee row lock that serializes presence
	// submissions for that employee, including when no attendance exists yet.
	LockEmployee(ctx context.Context, employeeID int64) error

	// LatestSince returns the most recent attendance with check_in_time >= since,
	// locking the rows it reads. Returns nil when there is none.
	LatestSince(ctx context.Context, employeeID int64, since time.Time) (*Attendance, error)

	// LatestOpenBetween returns the most recent open attendance with
	// check_in_time in [from, to), locked. Returns nil when there is none.
	LatestOpenBetween(ctx context.Context, employeeID int64, from, to time.Time) (*Attendance, error)

	Create(ctx context.Context, a Attendance) (Attendance, error)

	// Close persists check_out_time and the computed fields of an open row.
	// Returns ErrNoOpenAttendance when the row was already closed.
	Close(ctx context.Context, a Attendance) (Attendance, error)

	GetByID(ctx context.Context, id int64) (Attendance, error)
	List(ctx context.Context, filter AttendanceFilter) ([]Attendance, int64, error)

	// ListStaleOpen returns open rows with check_in_time before cutoff.
	ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]Attendance, error)
}
