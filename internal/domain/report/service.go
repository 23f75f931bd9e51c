package report

import "context"

// ReportService aggregates persisted attendance figures. It never recomputes pay.
type ReportService interface {
	Payroll(ctx context.Context, req PeriodRequest, scope Scope) (PayrollReport, error)
	Attendance(ctx context.Context, req AttendanceReportRequest, scope Scope) (AttendanceReport, error)
	Statistics(ctx context.Context, req PeriodRequest, scope Scope) (StatisticsReport, error)
	Today(ctx context.Context, scope Scope) (TodayReport, error)

	// SystemStatus counts every employee and every check-in of the current day.
	SystemStatus(ctx context.Context) (SystemStatus, error)

	ExportPayroll(ctx context.Context, req ExportPayrollRequest, scope Scope) (ExportFile, error)
	EmailPayroll(ctx context.Context, req EmailPayrollRequest, scope Scope) (EmailPayrollResult, error)
}
