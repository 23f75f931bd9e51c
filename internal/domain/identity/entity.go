package identity

import "strings"

type CredentialType string

const (
	CredentialNFC       CredentialType = "nfc"
	CredentialBiometric CredentialType = "biometric"
	CredentialSession   CredentialType = "session"
	CredentialQR        CredentialType = "qr"
)

// NFCPayloadPrefix starts every card payload: NCTNFC:v<version>:<employee id>:<token>.
const NFCPayloadPrefix = "NCTNFC"

// Credential carries exactly one way of identifying an employee.
type Credential struct {
	Type  CredentialType `json:"type" validate:"required,oneof=nfc biometric session qr"`
	Value string         `json:"value"`
	Code  string         `json:"code"`

	// UserID is the authenticated caller for session and qr credentials. Never
	// read from the request body.
	UserID int64 `json:"-"`
}

// NormalizeNFC trims the raw scan and drops NUL and other control characters
// that some readers append.
func NormalizeNFC(raw string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw))
}
