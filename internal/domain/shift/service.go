package shift

import "context"

// ShiftService owns the shift registry: detection, overlap validation and CRUD.
type ShiftService interface {
	// DetectByTime returns the shift covering t, the configured default shift,
	// or ErrShiftNotFound.
	DetectByTime(ctx context.Context, t TimeOfDay) (Shift, error)

	// ValidateOverlap returns the first conflicting shift, or nil.
	ValidateOverlap(ctx context.Context, start, end TimeOfDay, excludeID *int64) (*OverlapError, error)

	// Create is idempotent on (name, start, end); created reports whether a row was inserted.
	Create(ctx context.Context, req CreateShiftRequest) (s Shift, created bool, err error)
	Update(ctx context.Context, req UpdateShiftRequest) (Shift, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Shift, error)
	List(ctx context.Context) ([]Shift, error)
}
