package kiosk

import "errors"

var (
	ErrQRInvalid       = errors.New("qr code is invalid")
	ErrQRExpired       = errors.New("qr code has expired")
	ErrCodeExhausted   = errors.New("could not generate a unique qr code")
	ErrInvalidKioskKey = errors.New("invalid kiosk token")
)
