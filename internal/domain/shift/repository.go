package shift

import "context"

// ShiftRepository defines data access for the shift registry.
type ShiftRepository interface {
	// List returns every shift ordered by id.
	List(ctx context.Context) ([]Shift, error)

	GetByID(ctx context.Context, id int64) (Shift, error)

	// FindByDefinition looks up a shift with identical name, start and end.
	// Returns nil when none exists.
	FindByDefinition(ctx context.Context, name string, start, end TimeOfDay) (*Shift, error)

	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, s Shift) (Shift, error)
	Update(ctx context.Context, s Shift) (Shift, error)
	Delete(ctx context.Context, id int64) error

	// IsReferenced reports whether any attendance points at the shift.
	IsReferenced(ctx context.Context, id int64) (bool, error)

	// LockRegistry serializes registry writers for the rest of the transaction.
	LockRegistry(ctx context.Context) error
}
