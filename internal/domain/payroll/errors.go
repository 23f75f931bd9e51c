package payroll

import "errors"

var (
	// ErrInvalidInterval means a caller asked for pay on an interval that does not
	// move forward. It signals a broken invariant upstream.
	ErrInvalidInterval = errors.New("check-out must be after check-in")
	ErrInvalidRules    = errors.New("invalid payroll rules")
)
