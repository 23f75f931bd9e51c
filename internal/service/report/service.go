package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/email"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/export"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

type reportServiceImpl struct {
	reportRepo   report.ReportRepository
	employeeRepo employee.EmployeeRepository
	emailService email.EmailService
	loc          *time.Location
	now          func() time.Time
}

func NewReportService(
	reportRepo report.ReportRepository,
	employeeRepo employee.EmployeeRepository,
	emailService email.EmailService,
	loc *time.Location,
	now func() time.Time,
) report.ReportService {
	if now == nil {
		now = time.Now
	}
	return &reportServiceImpl{
		reportRepo:   reportRepo,
		employeeRepo: employeeRepo,
		emailService: emailService,
		loc:          loc,
		now:          now,
	}
}

// aggregateScope returns the department filter for reports spanning many
// employees. Staff may only read their own figures.
func aggregateScope(scope report.Scope) (*int64, error) {
	if scope.Role != employee.RoleAdmin && scope.Role != employee.RoleManager {
		return nil, report.ErrOutOfScope
	}
	return scope.Department()
}

// Payroll implements report.ReportService.
func (s *reportServiceImpl) Payroll(ctx context.Context, req report.PeriodRequest, scope report.Scope) (report.PayrollReport, error) {
	period, err := req.Resolve(s.now(), s.loc)
	if err != nil {
		return report.PayrollReport{}, err
	}
	departmentID, err := aggregateScope(scope)
	if err != nil {
		return report.PayrollReport{}, err
	}

	rows, err := s.reportRepo.ClosedAttendances(ctx, period.Start, period.End, departmentID)
	if err != nil {
		return report.PayrollReport{}, fmt.Errorf("failed to load attendances: %w", err)
	}

	// Rows arrive grouped by employee.
	var (
		employees []report.EmployeePayroll
		totalAll  = decimal.Zero
	)
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].EmployeeID == rows[start].EmployeeID {
			end++
		}

		emp, err := s.employeeRepo.GetByID(ctx, rows[start].EmployeeID)
		if err != nil {
			return report.PayrollReport{}, fmt.Errorf("failed to load employee %d: %w", rows[start].EmployeeID, err)
		}
		ep := s.employeePayroll(emp, rows[start:end])
		totalAll = totalAll.Add(ep.TotalSalary)
		employees = append(employees, ep)
		start = end
	}
	if employees == nil {
		employees = []report.EmployeePayroll{}
	}

	return report.PayrollReport{
		Period:         period.Meta(),
		GeneratedAt:    s.now().In(s.loc).Format(time.RFC3339),
		TotalEmployees: len(employees),
		TotalSalaryAll: totalAll,
		Employees:      employees,
	}, nil
}

// employeePayroll sums the stored figures of closed rows. Pay is never recomputed.
func (s *reportServiceImpl) employeePayroll(emp employee.Employee, rows []report.AttendanceRow) report.EmployeePayroll {
	hours, salary := decimal.Zero, decimal.Zero
	details := make([]report.PayrollDetail, 0, len(rows))
	days := 0

	for _, r := range rows {
		if r.CheckOut == nil {
			continue
		}
		work, paid := valueOrZero(r.WorkHours), valueOrZero(r.EarnedSalary)
		hours = hours.Add(work)
		salary = salary.Add(paid)
		days++

		in := r.CheckIn.In(s.loc)
		details = append(details, report.PayrollDetail{
			Date:         in.Format(dateLayout),
			DayOfWeek:    in.Weekday().String(),
			CheckIn:      in.Format(clockLayout),
			CheckOut:     r.CheckOut.In(s.loc).Format(clockLayout),
			WorkHours:    work,
			EarnedSalary: paid,
		})
	}

	return report.EmployeePayroll{
		UserID:          emp.ID,
		UserName:        emp.DisplayName(),
		Email:           emp.Email,
		Phone:           emp.Phone,
		HourlyRate:      emp.HourlyRate,
		TotalWorkHours:  hours.Round(2),
		TotalSalary:     salary.Round(0),
		TotalDaysWorked: days,
		Details:         details,
	}
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Attendance implements report.ReportService.
func (s *reportServiceImpl) Attendance(ctx context.Context, req report.AttendanceReportRequest, scope report.Scope) (report.AttendanceReport, error) {
	if err := req.Validate(); err != nil {
		return report.AttendanceReport{}, err
	}
	period, err := req.PeriodRequest.Resolve(s.now(), s.loc)
	if err != nil {
		return report.AttendanceReport{}, err
	}

	userID := scope.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}
	emp, err := s.employeeRepo.GetByID(ctx, userID)
	if err != nil {
		return report.AttendanceReport{}, err
	}
	if !scope.CanSee(emp) {
		return report.AttendanceReport{}, report.ErrOutOfScope
	}

	rows, err := s.reportRepo.EmployeeAttendances(ctx, emp.ID, period.Start, period.End)
	if err != nil {
		return report.AttendanceReport{}, fmt.Errorf("failed to load attendances: %w", err)
	}

	out := report.AttendanceReport{
		Period:        period.Meta(),
		EmployeeID:    emp.ID,
		EmployeeName:  emp.DisplayName(),
		TotalWorkDays: len(rows),
		Details:       make([]report.AttendanceDetail, 0, len(rows)),
	}
	for _, r := range rows {
		d := s.attendanceDetail(r)
		if d.IsLate {
			out.LateDays++
		}
		out.Details = append(out.Details, d)
	}
	return out, nil
}

// attendanceDetail flags a row late when the check-in clock time is later than
// the shift start. Rows without a shift are never late.
func (s *reportServiceImpl) attendanceDetail(r report.AttendanceRow) report.AttendanceDetail {
	in := r.CheckIn.In(s.loc)
	d := report.AttendanceDetail{
		Date:      in.Format(dateLayout),
		CheckIn:   in.Format(clockLayout),
		ShiftName: r.ShiftName,
	}
	if r.CheckOut != nil {
		out := r.CheckOut.In(s.loc).Format(clockLayout)
		d.CheckOut = &out
	}
	if r.ShiftStart != nil {
		start := r.ShiftStart.Short()
		d.ShiftStart = &start

		if clock := shift.TimeOfDayOf(in); clock > *r.ShiftStart {
			d.IsLate = true
			d.LateMinutes = int(clock-*r.ShiftStart) / 60
		}
	}
	return d
}

// Statistics implements report.ReportService.
func (s *reportServiceImpl) Statistics(ctx context.Context, req report.PeriodRequest, scope report.Scope) (report.StatisticsReport, error) {
	period, err := req.Resolve(s.now(), s.loc)
	if err != nil {
		return report.StatisticsReport{}, err
	}
	departmentID, err := aggregateScope(scope)
	if err != nil {
		return report.StatisticsReport{}, err
	}

	var (
		worked, attendances int
		totals              report.Totals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.reportRepo.CountEmployeesWorked(gctx, period.Start, period.End, departmentID)
		worked = n
		return err
	})
	g.Go(func() error {
		n, err := s.reportRepo.CountClosed(gctx, period.Start, period.End, departmentID)
		attendances = n
		return err
	})
	g.Go(func() error {
		t, err := s.reportRepo.SumClosed(gctx, period.Start, period.End, departmentID)
		totals = t
		return err
	})
	if err := g.Wait(); err != nil {
		return report.StatisticsReport{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	out := report.StatisticsReport{
		Period:                   period.Meta(),
		TotalEmployeesWorked:     worked,
		TotalAttendances:         attendances,
		TotalWorkHours:           totals.WorkHours.Round(2),
		TotalSalary:              totals.Salary.Round(0),
		AverageHoursPerEmployee:  decimal.Zero,
		AverageSalaryPerEmployee: decimal.Zero,
	}
	if worked > 0 {
		n := decimal.NewFromInt(int64(worked))
		out.AverageHoursPerEmployee = totals.WorkHours.Div(n).Round(2)
		out.AverageSalaryPerEmployee = totals.Salary.Div(n).Round(0)
	}
	return out, nil
}

// SystemStatus implements report.ReportService.
func (s *reportServiceImpl) SystemStatus(ctx context.Context) (report.SystemStatus, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	var employees, checkIns int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employees, err = s.reportRepo.CountEmployees(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		checkIns, err = s.reportRepo.CountCheckIns(gctx, dayStart, dayStart.AddDate(0, 0, 1))
		return err
	})
	if err := g.Wait(); err != nil {
		return report.SystemStatus{}, fmt.Errorf("failed to load system status: %w", err)
	}

	return report.SystemStatus{
		Status:           "online",
		TotalEmployees:   employees,
		TodayAttendances: checkIns,
		ServerTime:       now.Format("2006-01-02 15:04:05"),
		Timezone:         s.loc.String(),
	}, nil
}

// Today implements report.ReportService.
func (s *reportServiceImpl) Today(ctx context.Context, scope report.Scope) (report.TodayReport, error) {
	departmentID, err := aggregateScope(scope)
	if err != nil {
		return report.TodayReport{}, err
	}

	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	var (
		staff    []employee.Employee
		attended []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		staff, err = s.employeeRepo.ListStaff(gctx, departmentID)
		return err
	})
	g.Go(func() error {
		var err error
		attended, err = s.reportRepo.AttendedEmployeeIDs(gctx, dayStart, dayStart.AddDate(0, 0, 1), departmentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return report.TodayReport{}, fmt.Errorf("failed to load today's attendance: %w", err)
	}

	present := make(map[int64]struct{}, len(attended))
	for _, id := range attended {
		present[id] = struct{}{}
	}

	out := report.TodayReport{
		Date:       dayStart.Format(dateLayout),
		TotalStaff: len(staff),
		AbsentList: []report.AbsentEmployee{},
	}
	for _, emp := range staff {
		if _, ok := present[emp.ID]; ok {
			out.Attended++
			continue
		}
		out.AbsentList = append(out.AbsentList, report.AbsentEmployee{
			ID:    emp.ID,
			Name:  emp.DisplayName(),
			Email: emp.Email,
			Phone: emp.Phone,
		})
	}
	out.Absent = out.TotalStaff - out.Attended
	return out, nil
}

// ExportPayroll implements report.ReportService.
func (s *reportServiceImpl) ExportPayroll(ctx context.Context, req report.ExportPayrollRequest, scope report.Scope) (report.ExportFile, error) {
	if err := req.Validate(); err != nil {
		return report.ExportFile{}, err
	}
	payroll, err := s.Payroll(ctx, req.PeriodRequest, scope)
	if err != nil {
		return report.ExportFile{}, err
	}

	name := fmt.Sprintf("payroll_%s_%s", payroll.Period.StartDate, payroll.Period.EndDate)
	switch req.Format {
	case report.FormatXLSX:
		data, err := export.PayrollXLSX(payroll)
		if err != nil {
			return report.ExportFile{}, err
		}
		return report.ExportFile{FileName: name + ".xlsx", ContentType: export.ContentTypeXLSX, Data: data}, nil
	case report.FormatPDF:
		data, err := export.PayrollPDF(payroll)
		if err != nil {
			return report.ExportFile{}, err
		}
		return report.ExportFile{FileName: name + ".pdf", ContentType: export.ContentTypePDF, Data: data}, nil
	default:
		return report.ExportFile{}, report.ErrUnsupportedFormat
	}
}

// EmailPayroll implements report.ReportService. A failed delivery is reported
// per address and does not abort the batch.
func (s *reportServiceImpl) EmailPayroll(ctx context.Context, req report.EmailPayrollRequest, scope report.Scope) (report.EmailPayrollResult, error) {
	if err := req.Validate(); err != nil {
		return report.EmailPayrollResult{}, err
	}
	period, err := req.PeriodRequest.Resolve(s.now(), s.loc)
	if err != nil {
		return report.EmailPayrollResult{}, err
	}
	departmentID, err := aggregateScope(scope)
	if err != nil {
		return report.EmailPayrollResult{}, err
	}

	staff, err := s.employeeRepo.ListStaff(ctx, departmentID)
	if err != nil {
		return report.EmailPayrollResult{}, fmt.Errorf("failed to list staff: %w", err)
	}
	if len(req.UserIDs) > 0 {
		wanted := make(map[int64]struct{}, len(req.UserIDs))
		for _, id := range req.UserIDs {
			wanted[id] = struct{}{}
		}
		filtered := staff[:0]
		for _, emp := range staff {
			if _, ok := wanted[emp.ID]; ok {
				filtered = append(filtered, emp)
			}
		}
		staff = filtered
	}

	result := report.EmailPayrollResult{Period: period.Meta(), FailedEmails: []string{}}
	for _, emp := range staff {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows, err := s.reportRepo.EmployeeAttendances(ctx, emp.ID, period.Start, period.End)
		if err != nil {
			return result, fmt.Errorf("failed to load attendances for employee %d: %w", emp.ID, err)
		}
		summary := s.payrollSummary(period, s.employeePayroll(emp, rows))

		if err := s.emailService.SendPayrollSummary(emp.Email, summary); err != nil {
			slog.Error("Failed to send payroll email", "employee_id", emp.ID, "error", err)
			result.FailedEmails = append(result.FailedEmails, emp.Email)
			continue
		}
		result.SentCount++
	}

	if result.SentCount == 0 && len(result.FailedEmails) > 0 {
		return result, errors.New("failed to send any payroll email")
	}
	return result, nil
}

func (s *reportServiceImpl) payrollSummary(period report.Period, ep report.EmployeePayroll) email.PayrollSummary {
	meta := period.Meta()
	summary := email.PayrollSummary{
		EmployeeName: ep.UserName,
		PeriodLabel:  meta.Label,
		StartDate:    meta.StartDate,
		EndDate:      meta.EndDate,
		DaysWorked:   ep.TotalDaysWorked,
		WorkHours:    ep.TotalWorkHours.StringFixed(2),
		HourlyRate:   ep.HourlyRate.StringFixed(0),
		TotalSalary:  ep.TotalSalary.StringFixed(0),
	}
	for _, d := range ep.Details {
		summary.Rows = append(summary.Rows, email.PayrollSummaryRow{
			Date:         d.Date,
			DayOfWeek:    d.DayOfWeek,
			CheckIn:      d.CheckIn,
			CheckOut:     d.CheckOut,
			WorkHours:    d.WorkHours.StringFixed(2),
			EarnedSalary: d.EarnedSalary.StringFixed(0),
		})
	}
	return summary
}
