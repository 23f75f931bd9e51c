package employee

import "errors"

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrNFCUIDTaken      = errors.New("nfc uid is already assigned to another employee")
)
