package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

const (
	PresenceCheckIn  = "check_in"
	PresenceCheckOut = "check_out"
)

type Attendance struct {
	ID           int64
	EmployeeID   int64
	ShiftID      int64
	CheckInTime  time.Time
	CheckOutTime *time.Time
	Timezone     string
	DeviceInfo   *string
	Latitude     *float64
	Longitude    *float64

	// Filled together at check-out, nil while open.
	WorkHours           *decimal.Decimal
	RegularHours        *decimal.Decimal
	OvertimeHours       *decimal.Decimal
	OvertimeDoubleHours *decimal.Decimal
	BreakHours          *decimal.Decimal
	EarnedSalary        *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time

	// Joined
	EmployeeName *string
	ShiftName    *string
}

func (a Attendance) IsOpen() bool {
	return a.CheckOutTime == nil
}

// Close stamps the check-out time and every computed field at once.
func (a *Attendance) Close(checkOut time.Time, b payroll.Breakdown) {
	a.CheckOutTime = &checkOut
	a.WorkHours = &b.WorkHours
	a.RegularHours = &b.RegularHours
	a.OvertimeHours = &b.OvertimeHours
	a.OvertimeDoubleHours = &b.OvertimeDoubleHours
	a.BreakHours = &b.BreakHours
	a.EarnedSalary = &b.EarnedSalary
}
