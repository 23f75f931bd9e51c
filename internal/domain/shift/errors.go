package shift

import (
	"errors"
	"fmt"
)

var (
	ErrShiftNotFound = errors.New("shift not found")
	ErrShiftOverlap  = errors.New("shift window overlaps an existing shift")
	ErrShiftInUse    = errors.New("shift is referenced by attendance records")
	ErrCodeExhausted = errors.New("could not generate a unique shift code")
)

// OverlapError names the shift that blocks a create or update.
type OverlapError struct {
	Conflict Shift
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("shift time overlaps with shift %q (%s)", e.Conflict.Name, e.Conflict.FormattedRange())
}

func (e *OverlapError) Unwrap() error {
	return ErrShiftOverlap
}
