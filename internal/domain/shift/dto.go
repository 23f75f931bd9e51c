package shift

import (
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const DefaultRadius = 100

type CreateShiftRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	StartTime string   `json:"start_time" validate:"required"`
	EndTime   string   `json:"end_time" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Radius    *int     `json:"radius" validate:"omitempty,min=1,max=100000"`

	start, end TimeOfDay
}

func (r *CreateShiftRequest) Validate() error {
	errs := validator.Struct(r)

	var err error
	if r.StartTime != "" {
		if r.start, err = ParseTimeOfDay(r.StartTime); err != nil {
			errs = append(errs, validator.ValidationError{Field: "start_time", Message: "start_time must be HH:MM or HH:MM:SS"})
		}
	}
	if r.EndTime != "" {
		if r.end, err = ParseTimeOfDay(r.EndTime); err != nil {
			errs = append(errs, validator.ValidationError{Field: "end_time", Message: "end_time must be HH:MM or HH:MM:SS"})
		}
	}
	if len(errs) == 0 && r.start == r.end {
		errs = append(errs, validator.ValidationError{Field: "end_time", Message: "end_time must differ from start_time"})
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		errs = append(errs, validator.ValidationError{Field: "latitude", Message: "latitude and longitude must be set together"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Window returns the parsed start and end. Only meaningful after Validate.
func (r *CreateShiftRequest) Window() (TimeOfDay, TimeOfDay) {
	return r.start, r.end
}

type UpdateShiftRequest struct {
	ID        int64    `json:"-"`
	Name      *string  `json:"name" validate:"omitempty,min=1,max=100"`
	StartTime *string  `json:"start_time"`
	EndTime   *string  `json:"end_time"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Radius    *int     `json:"radius" validate:"omitempty,min=1,max=100000"`
	// ClearGeofence removes the location check. It cannot be combined with coordinates.
	ClearGeofence bool `json:"clear_geofence"`
}

func (r *UpdateShiftRequest) Validate() error {
	errs := validator.Struct(r)
	if r.StartTime != nil {
		if _, err := ParseTimeOfDay(*r.StartTime); err != nil {
			errs = append(errs, validator.ValidationError{Field: "start_time", Message: "start_time must be HH:MM or HH:MM:SS"})
		}
	}
	if r.EndTime != nil {
		if _, err := ParseTimeOfDay(*r.EndTime); err != nil {
			errs = append(errs, validator.ValidationError{Field: "end_time", Message: "end_time must be HH:MM or HH:MM:SS"})
		}
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		errs = append(errs, validator.ValidationError{Field: "latitude", Message: "latitude and longitude must be set together"})
	}
	if r.ClearGeofence && (r.Latitude != nil || r.Longitude != nil) {
		errs = append(errs, validator.ValidationError{Field: "clear_geofence", Message: "clear_geofence cannot be combined with latitude or longitude"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ShiftResponse struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Overnight bool     `json:"overnight"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Radius    int      `json:"radius"`
}

func NewShiftResponse(s Shift) ShiftResponse {
	return ShiftResponse{
		ID:        s.ID,
		Name:      s.Name,
		Code:      s.Code,
		StartTime: s.StartTime.String(),
		EndTime:   s.EndTime.String(),
		Overnight: s.IsOvernight(),
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Radius:    s.Radius,
	}
}
