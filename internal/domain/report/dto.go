package report

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ========================================
// PERIOD
// ========================================

// PeriodRequest selects a reporting window. Zero fields default to the period
// containing "now".
type PeriodRequest struct {
	Period  PeriodKind `json:"period" validate:"omitempty,oneof=monthly weekly quarterly yearly"`
	Year    int        `json:"year" validate:"omitempty,min=2000,max=2100"`
	Month   int        `json:"month" validate:"omitempty,min=1,max=12"`
	Week    int        `json:"week" validate:"omitempty,min=1,max=53"`
	Quarter int        `json:"quarter" validate:"omitempty,min=1,max=4"`
}

func (r *PeriodRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

// Resolve validates the request and turns it into a [start, end) window in loc.
func (r PeriodRequest) Resolve(now time.Time, loc *time.Location) (Period, error) {
	if err := r.Validate(); err != nil {
		return Period{}, err
	}
	now = now.In(loc)

	p := Period{Kind: r.Period, Year: r.Year}
	if p.Kind == "" {
		p.Kind = PeriodMonthly
	}

	switch p.Kind {
	case PeriodWeekly:
		year, week := now.ISOWeek()
		if r.Year != 0 {
			year = r.Year
		}
		if r.Week != 0 {
			week = r.Week
		}
		if week > ISOWeeksIn(year) {
			return Period{}, validator.ValidationErrors{{
				Field:   "week",
				Message: fmt.Sprintf("year %d has only %d ISO weeks", year, ISOWeeksIn(year)),
			}}
		}
		p.Year, p.Week = year, week
		p.Start = ISOWeekStart(year, week, loc)
		p.End = p.Start.AddDate(0, 0, 7)
	case PeriodQuarterly:
		if p.Year == 0 {
			p.Year = now.Year()
		}
		p.Quarter = r.Quarter
		if p.Quarter == 0 {
			p.Quarter = (int(now.Month())-1)/3 + 1
		}
		p.Start = time.Date(p.Year, time.Month((p.Quarter-1)*3+1), 1, 0, 0, 0, 0, loc)
		p.End = p.Start.AddDate(0, 3, 0)
	case PeriodYearly:
		if p.Year == 0 {
			p.Year = now.Year()
		}
		p.Start = time.Date(p.Year, time.January, 1, 0, 0, 0, 0, loc)
		p.End = p.Start.AddDate(1, 0, 0)
	default:
		if p.Year == 0 {
			p.Year = now.Year()
		}
		p.Month = r.Month
		if p.Month == 0 {
			p.Month = int(now.Month())
		}
		p.Start = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
		p.End = p.Start.AddDate(0, 1, 0)
	}
	return p, nil
}

type PeriodMeta struct {
	Period    string `json:"period"`
	Year      int    `json:"year"`
	Month     int    `json:"month,omitempty"`
	Week      int    `json:"week,omitempty"`
	Quarter   int    `json:"quarter,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Label     string `json:"label"`
}

// ========================================
// PAYROLL
// ========================================

type PayrollReport struct {
	Period         PeriodMeta        `json:"period"`
	GeneratedAt    string            `json:"generated_at"`
	TotalEmployees int               `json:"total_employees"`
	TotalSalaryAll decimal.Decimal   `json:"total_salary_all"`
	Employees      []EmployeePayroll `json:"employees"`
}

type EmployeePayroll struct {
	UserID          int64           `json:"user_id"`
	UserName        string          `json:"user_name"`
	Email           string          `json:"email"`
	Phone           *string         `json:"phone"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	TotalWorkHours  decimal.Decimal `json:"total_work_hours"`
	TotalSalary     decimal.Decimal `json:"total_salary"`
	TotalDaysWorked int             `json:"total_days_worked"`
	Details         []PayrollDetail `json:"details"`
}

type PayrollDetail struct {
	Date         string          `json:"date"`
	DayOfWeek    string          `json:"day_of_week"`
	CheckIn      string          `json:"check_in"`
	CheckOut     string          `json:"check_out"`
	WorkHours    decimal.Decimal `json:"work_hours"`
	EarnedSalary decimal.Decimal `json:"earned_salary"`
}

// ========================================
// ATTENDANCE (LATENESS)
// ========================================

type AttendanceReportRequest struct {
	PeriodRequest
	// UserID defaults to the caller.
	UserID *int64 `json:"user_id" validate:"omitempty,gt=0"`
}

func (r *AttendanceReportRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

type AttendanceReport struct {
	Period        PeriodMeta         `json:"period"`
	EmployeeID    int64              `json:"employee_id"`
	EmployeeName  string             `json:"employee_name"`
	TotalWorkDays int                `json:"total_work_days"`
	LateDays      int                `json:"late_days"`
	Details       []AttendanceDetail `json:"details"`
}

type AttendanceDetail struct {
	Date        string  `json:"date"`
	CheckIn     string  `json:"check_in"`
	CheckOut    *string `json:"check_out"`
	ShiftName   *string `json:"shift_name"`
	ShiftStart  *string `json:"shift_start"`
	IsLate      bool    `json:"is_late"`
	LateMinutes int     `json:"late_minutes"`
}

// ========================================
// STATISTICS
// ========================================

type StatisticsReport struct {
	Period                   PeriodMeta      `json:"period"`
	TotalEmployeesWorked     int             `json:"total_employees_worked"`
	TotalAttendances         int             `json:"total_attendances"`
	TotalWorkHours           decimal.Decimal `json:"total_work_hours"`
	TotalSalary              decimal.Decimal `json:"total_salary"`
	AverageHoursPerEmployee  decimal.Decimal `json:"average_hours_per_employee"`
	AverageSalaryPerEmployee decimal.Decimal `json:"average_salary_per_employee"`
}

// ========================================
// TODAY
// ========================================

type TodayReport struct {
	Date       string           `json:"date"`
	TotalStaff int              `json:"total_staff"`
	Attended   int              `json:"attended"`
	Absent     int              `json:"absent"`
	AbsentList []AbsentEmployee `json:"absent_list"`
}

type AbsentEmployee struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// ========================================
// EXPORT & EMAIL
// ========================================

type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

type ExportPayrollRequest struct {
	PeriodRequest
	Format ExportFormat `json:"format" validate:"required,oneof=xlsx pdf"`
}

func (r *ExportPayrollRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

type EmailPayrollRequest struct {
	PeriodRequest
	// UserIDs limits delivery; empty means every staff member in scope.
	UserIDs []int64 `json:"user_ids" validate:"omitempty,dive,gt=0"`
}

func (r *EmailPayrollRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

type EmailPayrollResult struct {
	Period       PeriodMeta `json:"period"`
	SentCount    int        `json:"sent_count"`
	FailedEmails []string   `json:"failed_emails"`
}

// SystemStatus is the health summary a kiosk shows on its idle screen.
type SystemStatus struct {
	Status           string `json:"status"`
	TotalEmployees   int    `json:"total_employees"`
	TodayAttendances int    `json:"today_attendances"`
	ServerTime       string `json:"server_time"`
	Timezone         string `json:"timezone"`
}
