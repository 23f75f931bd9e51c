package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/shopspring/decimal"
)

var (
	secondsPerHour = decimal.NewFromInt(3600)
	one            = decimal.NewFromInt(1)
)

type calculator struct {
	rules payroll.Rules
}

// NewCalculator validates rules and returns a pure calculator.
func NewCalculator(rules payroll.Rules) (payroll.Calculator, error) {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	if !rules.StandardWorkHours.IsPositive() || rules.DoubleOvertimeThreshold.LessThan(rules.StandardWorkHours) {
		return nil, fmt.Errorf("%w: double overtime threshold must be >= standard hours > 0", payroll.ErrInvalidRules)
	}
	if !rules.OvertimeRate.IsPositive() || !rules.OvertimeDoubleRate.IsPositive() || !rules.WeekendMultiplier.IsPositive() {
		return nil, fmt.Errorf("%w: rates and multipliers must be positive", payroll.ErrInvalidRules)
	}
	if rules.BreakStart < 0 || rules.BreakEnd > 24*time.Hour || rules.BreakEnd < rules.BreakStart {
		return nil, fmt.Errorf("%w: break window must lie within one day and end after it starts", payroll.ErrInvalidRules)
	}
	return &calculator{rules: rules}, nil
}

// RulesFromConfig maps the environment configuration onto calculator rules.
func RulesFromConfig(cfg config.PayrollConfig, loc *time.Location) (payroll.Rules, error) {
	breakStart, err := shift.ParseTimeOfDay(cfg.BreakTimeStart)
	if err != nil {
		return payroll.Rules{}, fmt.Errorf("BREAK_TIME_START: %w", err)
	}
	breakEnd, err := shift.ParseTimeOfDay(cfg.BreakTimeEnd)
	if err != nil {
		return payroll.Rules{}, fmt.Errorf("BREAK_TIME_END: %w", err)
	}
	return payroll.Rules{
		OvertimeRate:            cfg.OvertimeRate,
		OvertimeDoubleRate:      cfg.OvertimeDoubleRate,
		WeekendMultiplier:       cfg.WeekendMultiplier,
		StandardWorkHours:       cfg.StandardWorkHours,
		DoubleOvertimeThreshold: cfg.DoubleOvertimeThreshold,
		BreakStart:              time.Duration(breakStart) * time.Second,
		BreakEnd:                time.Duration(breakEnd) * time.Second,
		HoursPrecision:          cfg.HoursPrecision,
		SalaryPrecision:         cfg.SalaryPrecision,
		Location:                loc,
	}, nil
}

func (c *calculator) Rules() payroll.Rules {
	return c.rules
}

// Compute implements payroll.Calculator.
func (c *calculator) Compute(checkIn, checkOut time.Time, hourlyRate decimal.Decimal) (payroll.Breakdown, error) {
	if !checkOut.After(checkIn) {
		return payroll.Breakdown{}, fmt.Errorf("%w (check-in %s, check-out %s)",
			payroll.ErrInvalidInterval, checkIn.Format(time.RFC3339), checkOut.Format(time.RFC3339))
	}

	r := c.rules
	localIn := checkIn.In(r.Location)

	total := checkOut.Sub(checkIn)
	breakOverlap := c.breakOverlap(localIn, checkOut)

	workHours := toHours(total - breakOverlap).Round(r.HoursPrecision)
	breakHours := toHours(breakOverlap).Round(r.HoursPrecision)

	// Bands are split from the rounded total so they add up to it exactly.
	regular := decimal.Min(workHours, r.StandardWorkHours)
	overtime := clamp(workHours.Sub(r.StandardWorkHours), decimal.Zero, r.DoubleOvertimeThreshold.Sub(r.StandardWorkHours))
	overtimeDouble := decimal.Max(decimal.Zero, workHours.Sub(r.DoubleOvertimeThreshold))

	weekday := localIn.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday
	multiplier := one
	if isWeekend {
		multiplier = r.WeekendMultiplier
	}

	weightedHours := regular.
		Add(overtime.Mul(r.OvertimeRate)).
		Add(overtimeDouble.Mul(r.OvertimeDoubleRate))
	salary := weightedHours.Mul(hourlyRate).Mul(multiplier).Round(r.SalaryPrecision)

	return payroll.Breakdown{
		WorkHours:           workHours,
		RegularHours:        regular,
		OvertimeHours:       overtime,
		OvertimeDoubleHours: overtimeDouble,
		BreakHours:          breakHours,
		IsWeekend:           isWeekend,
		Multiplier:          multiplier,
		EarnedSalary:        salary,
	}, nil
}

// breakOverlap intersects [checkIn, checkOut] with the break window on the
// check-in's calendar date.
func (c *calculator) breakOverlap(localIn, checkOut time.Time) time.Duration {
	if c.rules.BreakEnd <= c.rules.BreakStart {
		return 0
	}
	y, m, d := localIn.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, localIn.Location())
	breakStart := midnight.Add(c.rules.BreakStart)
	breakEnd := midnight.Add(c.rules.BreakEnd)

	from := maxTime(localIn, breakStart)
	to := minTime(checkOut, breakEnd)
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

func toHours(d time.Duration) decimal.Decimal {
	return decimal.NewFromFloat(d.Seconds()).Div(secondsPerHour)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
