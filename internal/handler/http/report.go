package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type ReportHandler interface {
	// GET /reports/payroll
	Payroll(w http.ResponseWriter, r *http.Request)

	// GET /reports/attendance
	Attendance(w http.ResponseWriter, r *http.Request)

	// GET /reports/statistics
	Statistics(w http.ResponseWriter, r *http.Request)

	// GET /reports/today
	Today(w http.ResponseWriter, r *http.Request)

	// GET /reports/payroll/export
	ExportPayroll(w http.ResponseWriter, r *http.Request)

	// POST /reports/payroll/email
	EmailPayroll(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{
		reportService: reportService,
	}
}

// Payroll implements ReportHandler.
func (h *reportHandlerImpl) Payroll(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}
	period, ok := periodFromQuery(r)
	if !ok {
		response.BadRequest(w, "year, month, week and quarter must be numbers", nil)
		return
	}

	result, err := h.reportService.Payroll(r.Context(), period, reportScope(p))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// Attendance implements ReportHandler.
func (h *reportHandlerImpl) Attendance(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}
	period, ok := periodFromQuery(r)
	if !ok {
		response.BadRequest(w, "year, month, week and quarter must be numbers", nil)
		return
	}
	userID, ok := queryInt64Ptr(r, "user_id")
	if !ok {
		response.BadRequest(w, "user_id must be a number", nil)
		return
	}

	req := report.AttendanceReportRequest{PeriodRequest: period, UserID: userID}
	result, err := h.reportService.Attendance(r.Context(), req, reportScope(p))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// Statistics implements ReportHandler.
func (h *reportHandlerImpl) Statistics(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}
	period, ok := periodFromQuery(r)
	if !ok {
		response.BadRequest(w, "year, month, week and quarter must be numbers", nil)
		return
	}

	result, err := h.reportService.Statistics(r.Context(), period, reportScope(p))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// Today implements ReportHandler.
func (h *reportHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}

	result, err := h.reportService.Today(r.Context(), reportScope(p))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// ExportPayroll implements ReportHandler.
func (h *reportHandlerImpl) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}
	period, ok := periodFromQuery(r)
	if !ok {
		response.BadRequest(w, "year, month, week and quarter must be numbers", nil)
		return
	}

	format := report.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatXLSX
	}

	req := report.ExportPayrollRequest{PeriodRequest: period, Format: format}
	file, err := h.reportService.ExportPayroll(r.Context(), req, reportScope(p))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.File(w, file.FileName, file.ContentType, file.Data)
}

// EmailPayroll implements ReportHandler.
func (h *reportHandlerImpl) EmailPayroll(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}

	var req report.EmailPayrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.reportService.EmailPayroll(r.Context(), req, reportScope(p))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Payroll summaries sent", result)
}
