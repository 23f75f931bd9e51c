package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rules are the pay constants consumed by the calculator.
type Rules struct {
	OvertimeRate            decimal.Decimal
	OvertimeDoubleRate      decimal.Decimal
	WeekendMultiplier       decimal.Decimal
	StandardWorkHours       decimal.Decimal
	DoubleOvertimeThreshold decimal.Decimal

	// Daily break window as offsets from midnight, placed on the check-in's date.
	BreakStart time.Duration
	BreakEnd   time.Duration

	HoursPrecision  int32
	SalaryPrecision int32

	// Location defines calendar days for the break window and weekend test.
	Location *time.Location
}

// Breakdown is the calculator output persisted on a closed attendance.
type Breakdown struct {
	WorkHours           decimal.Decimal
	RegularHours        decimal.Decimal
	OvertimeHours       decimal.Decimal
	OvertimeDoubleHours decimal.Decimal
	BreakHours          decimal.Decimal
	IsWeekend           bool
	Multiplier          decimal.Decimal
	EarnedSalary        decimal.Decimal
}
