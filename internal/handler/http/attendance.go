package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type AttendanceHandler interface {
	Presence(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	Today(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	ManualEntry(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// Presence implements AttendanceHandler. Kiosks present card or biometric
// credentials; employees present their session or a scanned kiosk code.
func (h *attendanceHandlerImpl) Presence(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req attendance.SubmitPresenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cred := &req.Credential
	switch {
	case p.IsKiosk && (cred.Type == identity.CredentialSession || cred.Type == identity.CredentialQR):
		response.HandleError(w, validator.ValidationErrors{{Field: "credential.type", Message: "kiosks accept nfc or biometric credentials"}})
		return
	case !p.IsKiosk && (cred.Type == identity.CredentialNFC || cred.Type == identity.CredentialBiometric):
		response.HandleError(w, validator.ValidationErrors{{Field: "credential.type", Message: "employees check in with session or qr credentials"}})
		return
	}
	if p.IsKiosk {
		if req.DeviceInfo == "" {
			req.DeviceInfo = "kiosk:" + p.KioskID
		}
	} else {
		cred.UserID = p.Claims.UserID
	}

	result, err := h.attendanceService.SubmitPresence(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if result.Type == attendance.PresenceCheckIn {
		response.Created(w, "Check in successful", result)
		return
	}
	response.SuccessWithMessage(w, "Check out successful", result)
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.SelfCheckOut(r.Context(), p.Claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Check out successful", result)
}

// Today implements AttendanceHandler.
func (h *attendanceHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}

	records, err := h.attendanceService.Today(r.Context(), p.Claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, records)
}

// List implements AttendanceHandler. Staff see their own records and managers
// their department.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}

	var filter attendance.AttendanceFilter
	var valid bool
	if filter.Page, valid = queryInt(r, "page"); !valid {
		response.BadRequest(w, "page must be a number", nil)
		return
	}
	if filter.Limit, valid = queryInt(r, "limit"); !valid {
		response.BadRequest(w, "limit must be a number", nil)
		return
	}
	if filter.EmployeeID, valid = queryInt64Ptr(r, "employee_id"); !valid {
		response.BadRequest(w, "employee_id must be a number", nil)
		return
	}
	if filter.DepartmentID, valid = queryInt64Ptr(r, "department_id"); !valid {
		response.BadRequest(w, "department_id must be a number", nil)
		return
	}
	filter.StartDate = queryStringPtr(r, "start_date")
	filter.EndDate = queryStringPtr(r, "end_date")
	filter.Status = queryStringPtr(r, "status")

	scope := reportScope(p)
	switch {
	case isStaff(p):
		filter.EmployeeID = &p.Claims.UserID
	case p.Claims.Role != employee.RoleAdmin:
		dept, err := scope.Department()
		if err != nil {
			response.HandleError(w, err)
			return
		}
		filter.DepartmentID = dept
	}

	result, err := h.attendanceService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Attendances, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid attendance ID", nil)
		return
	}

	record, err := h.attendanceService.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if isStaff(p) && record.EmployeeID != p.Claims.UserID {
		response.HandleError(w, attendance.ErrAttendanceNotFound)
		return
	}
	response.Success(w, record)
}

// ManualEntry implements AttendanceHandler.
func (h *attendanceHandlerImpl) ManualEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := employeePrincipal(w, r)
	if !ok {
		return
	}

	var req attendance.ManualEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = p.Claims.UserID

	record, err := h.attendanceService.ManualEntry(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Attendance recorded", record)
}
