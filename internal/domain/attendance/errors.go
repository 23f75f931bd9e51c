package attendance

import (
	"errors"
	"fmt"
)

var (
	ErrAttendanceNotFound   = errors.New("attendance record not found")
	ErrNoOpenAttendance     = errors.New("no open attendance for today")
	ErrGPSRequired          = errors.New("location is required to check in for this shift")
	ErrTooFar               = errors.New("you are outside the allowed radius")
	ErrOpenAttendanceExists = errors.New("employee already has an open attendance for this day")
)

// GeofenceError reports how far a check-in was from the shift location.
type GeofenceError struct {
	Distance    float64
	MaxDistance float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("you are %.0fm from the shift location, the allowed radius is %.0fm", e.Distance, e.MaxDistance)
}

func (e *GeofenceError) Unwrap() error {
	return ErrTooFar
}
