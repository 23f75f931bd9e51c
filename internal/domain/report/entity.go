package report

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
)

type PeriodKind string

const (
	PeriodMonthly   PeriodKind = "monthly"
	PeriodWeekly    PeriodKind = "weekly"
	PeriodQuarterly PeriodKind = "quarterly"
	PeriodYearly    PeriodKind = "yearly"
)

// Period is a resolved reporting window [Start, End) in the engine timezone.
type Period struct {
	Kind    PeriodKind
	Year    int
	Month   int
	Week    int
	Quarter int
	Start   time.Time
	End     time.Time
}

// LastDay is the final calendar day covered by the period.
func (p Period) LastDay() time.Time {
	return p.End.AddDate(0, 0, -1)
}

func (p Period) Label() string {
	switch p.Kind {
	case PeriodWeekly:
		return fmt.Sprintf("Week %d/%d (%s - %s)", p.Week, p.Year, p.Start.Format(dateLayout), p.LastDay().Format(dateLayout))
	case PeriodQuarterly:
		return fmt.Sprintf("Q%d %d", p.Quarter, p.Year)
	case PeriodYearly:
		return fmt.Sprintf("Year %d", p.Year)
	default:
		return fmt.Sprintf("%s %d", time.Month(p.Month), p.Year)
	}
}

// Meta is the JSON description of the period attached to every report.
func (p Period) Meta() PeriodMeta {
	return PeriodMeta{
		Period:    string(p.Kind),
		Year:      p.Year,
		Month:     p.Month,
		Week:      p.Week,
		Quarter:   p.Quarter,
		StartDate: p.Start.Format(dateLayout),
		EndDate:   p.LastDay().Format(dateLayout),
		Label:     p.Label(),
	}
}

// ISOWeekStart returns the Monday of ISO week `week` of `year` in loc.
func ISOWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

// ISOWeeksIn reports whether the ISO year has 52 or 53 weeks.
func ISOWeeksIn(year int) int {
	_, w := time.Date(year, time.December, 28, 12, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// Scope limits which employees a report caller may see. Managers are held to
// their own department; admins see everyone.
type Scope struct {
	UserID       int64
	Role         employee.Role
	DepartmentID *int64
}

// Department returns the department filter for the caller, nil meaning all.
func (s Scope) Department() (*int64, error) {
	if s.Role != employee.RoleManager {
		return nil, nil
	}
	if s.DepartmentID == nil {
		return nil, ErrNoDepartment
	}
	return s.DepartmentID, nil
}

// CanSee reports whether the caller may read reports for emp.
func (s Scope) CanSee(emp employee.Employee) bool {
	switch s.Role {
	case employee.RoleAdmin:
		return true
	case employee.RoleManager:
		if emp.ID == s.UserID {
			return true
		}
		return s.DepartmentID != nil && emp.DepartmentID != nil && *s.DepartmentID == *emp.DepartmentID
	default:
		return emp.ID == s.UserID
	}
}
