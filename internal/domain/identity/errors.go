package identity

import "errors"

var (
	ErrIdentityNotFound  = errors.New("employee not found for the presented credential")
	ErrAccountLocked     = errors.New("account is deactivated")
	ErrUnsupportedType   = errors.New("unsupported credential type")
	ErrBiometricTaken    = errors.New("biometric id is already registered to another employee")
	ErrInvalidNFCVersion = errors.New("nfc payload version must be at least 1")
	ErrNFCUIDTaken       = errors.New("nfc uid is already assigned to another employee")
)
