package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]interface{}, len(validationErrs))
		for field, msg := range validationErrs.ToMap() {
			details[field] = msg
		}
		ValidationError(w, details)
		return
	}

	var geo *attendance.GeofenceError
	if errors.As(err, &geo) {
		Error(w, http.StatusUnprocessableEntity, "TOO_FAR", err.Error(), map[string]interface{}{
			"distance":     int(geo.Distance + 0.5),
			"max_distance": int(geo.MaxDistance + 0.5),
		})
		return
	}

	var overlap *shift.OverlapError
	if errors.As(err, &overlap) {
		Error(w, http.StatusConflict, "SHIFT_OVERLAP", err.Error(), map[string]interface{}{
			"conflict_shift_id":   overlap.Conflict.ID,
			"conflict_shift_name": overlap.Conflict.Name,
			"conflict_range":      overlap.Conflict.FormattedRange(),
		})
		return
	}

	switch {
	// Identity
	case errors.Is(err, identity.ErrIdentityNotFound):
		Error(w, http.StatusNotFound, "IDENTITY_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, identity.ErrAccountLocked):
		Error(w, http.StatusForbidden, "ACCOUNT_LOCKED", err.Error(), nil)
	case errors.Is(err, identity.ErrUnsupportedType):
		Error(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, identity.ErrBiometricTaken), errors.Is(err, identity.ErrNFCUIDTaken):
		Conflict(w, err.Error())
	case errors.Is(err, identity.ErrInvalidNFCVersion):
		Error(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Attendance
	case errors.Is(err, attendance.ErrGPSRequired):
		Error(w, http.StatusUnprocessableEntity, "GPS_REQUIRED", err.Error(), nil)
	case errors.Is(err, attendance.ErrNoOpenAttendance):
		Error(w, http.StatusNotFound, "NO_OPEN_ATTENDANCE", err.Error(), nil)
	case errors.Is(err, attendance.ErrOpenAttendanceExists):
		Error(w, http.StatusConflict, "ATTENDANCE_OPEN", err.Error(), nil)
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")

	// Shift
	case errors.Is(err, shift.ErrShiftNotFound):
		Error(w, http.StatusNotFound, "SHIFT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, shift.ErrShiftInUse):
		Error(w, http.StatusConflict, "SHIFT_IN_USE", err.Error(), nil)

	// Kiosk
	case errors.Is(err, kiosk.ErrQRInvalid):
		Error(w, http.StatusNotFound, "QR_INVALID", err.Error(), nil)
	case errors.Is(err, kiosk.ErrQRExpired):
		Error(w, http.StatusGone, "QR_EXPIRED", err.Error(), nil)
	case errors.Is(err, kiosk.ErrInvalidKioskKey):
		Unauthorized(w, err.Error())

	// Report
	case errors.Is(err, report.ErrOutOfScope), errors.Is(err, report.ErrNoDepartment):
		Forbidden(w, err.Error())
	case errors.Is(err, report.ErrUnsupportedFormat):
		BadRequest(w, err.Error(), nil)

	// Storage contention
	case errors.Is(err, database.ErrTransient):
		w.Header().Set("Retry-After", "1")
		Error(w, http.StatusServiceUnavailable, "TRANSIENT_ERROR", "The request conflicted with another one, please retry", nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
