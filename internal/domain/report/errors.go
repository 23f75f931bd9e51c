package report

import "errors"

var (
	ErrNoDepartment      = errors.New("manager is not assigned to a department")
	ErrOutOfScope        = errors.New("employee is outside your reporting scope")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
