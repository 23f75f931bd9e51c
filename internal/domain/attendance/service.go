package attendance

import (
	"context"
	"time"
)

// AttendanceService is the presence state machine plus the read side of
// attendance records.
type AttendanceService interface {
	// SubmitPresence resolves the credential and either opens or closes the
	// employee's attendance for today.
	SubmitPresence(ctx context.Context, req SubmitPresenceRequest) (PresenceResult, error)

	// ManualEntry records an attendance with explicit times, bypassing the
	// state machine but not the calculator.
	ManualEntry(ctx context.Context, req ManualEntryRequest) (AttendanceResponse, error)

	// SelfCheckOut closes today's open attendance of employeeID.
	SelfCheckOut(ctx context.Context, employeeID int64) (PresenceResult, error)

	Get(ctx context.Context, id int64) (AttendanceResponse, error)
	List(ctx context.Context, filter AttendanceFilter) (ListAttendanceResponse, error)
	Today(ctx context.Context, employeeID int64) ([]AttendanceResponse, error)

	// AutoCloseStale closes attendances left open longer than olderThan and
	// returns how many were closed.
	AutoCloseStale(ctx context.Context, olderThan time.Duration) (int, error)
}
