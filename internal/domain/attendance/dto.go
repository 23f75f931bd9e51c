package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========================================
// PRESENCE
// ========================================

type SubmitPresenceRequest struct {
	Credential identity.Credential `json:"credential"`
	DeviceInfo string              `json:"device_info" validate:"max=255"`
	Latitude   *float64            `json:"latitude" validate:"omitempty,latitude"`
	Longitude  *float64            `json:"longitude" validate:"omitempty,longitude"`

	// Timestamp defaults to the server clock. Only internal callers set it.
	Timestamp time.Time `json:"-"`
}

func (r *SubmitPresenceRequest) Validate() error {
	errs := validator.Struct(r)

	switch r.Credential.Type {
	case identity.CredentialNFC, identity.CredentialBiometric:
		if validator.IsEmpty(r.Credential.Value) {
			errs = append(errs, validator.ValidationError{Field: "credential.value", Message: "credential.value is required"})
		}
	case identity.CredentialQR:
		if validator.IsEmpty(r.Credential.Code) {
			errs = append(errs, validator.ValidationError{Field: "credential.code", Message: "credential.code is required"})
		}
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		errs = append(errs, validator.ValidationError{Field: "latitude", Message: "latitude and longitude must be set together"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PresenceResult is the outcome of one submission: a check-in or a check-out
// with its pay breakdown.
type PresenceResult struct {
	Type         string     `json:"type"`
	AttendanceID int64      `json:"attendance_id"`
	EmployeeID   int64      `json:"employee_id"`
	EmployeeName string     `json:"employee_name"`
	CheckInTime  time.Time  `json:"check_in_time"`
	ShiftName    string     `json:"shift_name,omitempty"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`

	WorkHours           *decimal.Decimal `json:"work_hours,omitempty"`
	RegularHours        *decimal.Decimal `json:"regular_hours,omitempty"`
	OvertimeHours       *decimal.Decimal `json:"overtime_hours,omitempty"`
	OvertimeDoubleHours *decimal.Decimal `json:"overtime_double_hours,omitempty"`
	BreakHours          *decimal.Decimal `json:"break_hours,omitempty"`
	EarnedSalary        *decimal.Decimal `json:"earned_salary,omitempty"`
}

// ========================================
// MANUAL ENTRY
// ========================================

type ManualEntryRequest struct {
	UserID   int64   `json:"user_id" validate:"required,gt=0"`
	CheckIn  string  `json:"check_in" validate:"required"`
	CheckOut *string `json:"check_out"`
	ShiftID  *int64  `json:"shift_id" validate:"omitempty,gt=0"`

	ActorID   int64  `json:"-"`
	ActorName string `json:"-"`

	checkIn  time.Time
	checkOut *time.Time
}

// Validate parses check_in and check_out as wall-clock times in loc.
func (r *ManualEntryRequest) Validate(loc *time.Location) error {
	errs := validator.Struct(r)

	if r.CheckIn != "" {
		t, ok := validator.IsValidLocalDateTime(r.CheckIn, loc)
		if !ok {
			errs = append(errs, validator.ValidationError{Field: "check_in", Message: "check_in must be in YYYY-MM-DD HH:MM:SS format"})
		}
		r.checkIn = t
	}
	if r.CheckOut != nil && !validator.IsEmpty(*r.CheckOut) {
		t, ok := validator.IsValidLocalDateTime(*r.CheckOut, loc)
		if !ok {
			errs = append(errs, validator.ValidationError{Field: "check_out", Message: "check_out must be in YYYY-MM-DD HH:MM:SS format"})
		} else {
			r.checkOut = &t
		}
	}
	if len(errs) == 0 && r.checkOut != nil && !r.checkOut.After(r.checkIn) {
		errs = append(errs, validator.ValidationError{Field: "check_out", Message: "check_out must be after check_in"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Times returns the parsed check-in and optional check-out. Only meaningful
// after Validate.
func (r *ManualEntryRequest) Times() (time.Time, *time.Time) {
	return r.checkIn, r.checkOut
}

// ========================================
// READ SIDE
// ========================================

type AttendanceFilter struct {
	EmployeeID   *int64  `json:"employee_id,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	StartDate    *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate      *string `json:"end_date,omitempty"`   // YYYY-MM-DD, inclusive
	Status       *string `json:"status,omitempty"`     // open, closed

	Page  int `json:"page"`
	Limit int `json:"limit"`

	// Resolved by Validate in the engine timezone.
	From *time.Time `json:"-"`
	To   *time.Time `json:"-"`
}

func (f *AttendanceFilter) Validate(loc *time.Location) error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{Field: "page", Message: "page must be a positive number"})
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must be a positive number"})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must not exceed 100"})
	}

	if f.Status != nil && !validator.IsInSlice(*f.Status, []string{"open", "closed"}) {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "status must be one of: open, closed"})
	}

	if f.StartDate != nil && *f.StartDate != "" {
		if d, ok := validator.IsValidDate(*f.StartDate); ok {
			from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
			f.From = &from
		} else {
			errs = append(errs, validator.ValidationError{Field: "start_date", Message: "start_date must be in YYYY-MM-DD format"})
		}
	}
	if f.EndDate != nil && *f.EndDate != "" {
		if d, ok := validator.IsValidDate(*f.EndDate); ok {
			to := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
			f.To = &to
		} else {
			errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must be in YYYY-MM-DD format"})
		}
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must not be before start_date"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type AttendanceResponse struct {
	ID           int64   `json:"id"`
	EmployeeID   int64   `json:"employee_id"`
	EmployeeName *string `json:"employee_name,omitempty"`
	ShiftID      int64   `json:"shift_id"`
	ShiftName    *string `json:"shift_name,omitempty"`
	CheckInTime  string  `json:"check_in_time"`
	CheckOutTime *string `json:"check_out_time,omitempty"`
	Status       string  `json:"status"`
	Timezone     string  `json:"timezone"`
	DeviceInfo   *string `json:"device_info,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	WorkHours           *decimal.Decimal `json:"work_hours,omitempty"`
	RegularHours        *decimal.Decimal `json:"regular_hours,omitempty"`
	OvertimeHours       *decimal.Decimal `json:"overtime_hours,omitempty"`
	OvertimeDoubleHours *decimal.Decimal `json:"overtime_double_hours,omitempty"`
	BreakHours          *decimal.Decimal `json:"break_hours,omitempty"`
	EarnedSalary        *decimal.Decimal `json:"earned_salary,omitempty"`
}

func NewAttendanceResponse(a Attendance, loc *time.Location) AttendanceResponse {
	resp := AttendanceResponse{
		ID:                  a.ID,
		EmployeeID:          a.EmployeeID,
		EmployeeName:        a.EmployeeName,
		ShiftID:             a.ShiftID,
		ShiftName:           a.ShiftName,
		CheckInTime:         a.CheckInTime.In(loc).Format(time.RFC3339),
		Status:              "open",
		Timezone:            a.Timezone,
		DeviceInfo:          a.DeviceInfo,
		Latitude:            a.Latitude,
		Longitude:           a.Longitude,
		WorkHours:           a.WorkHours,
		RegularHours:        a.RegularHours,
		OvertimeHours:       a.OvertimeHours,
		OvertimeDoubleHours: a.OvertimeDoubleHours,
		BreakHours:          a.BreakHours,
		EarnedSalary:        a.EarnedSalary,
	}
	if a.CheckOutTime != nil {
		out := a.CheckOutTime.In(loc).Format(time.RFC3339)
		resp.CheckOutTime = &out
		resp.Status = "closed"
	}
	return resp
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Attendances []AttendanceResponse `json:"attendances"`
}
