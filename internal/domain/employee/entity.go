package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

type Employee struct {
	ID                int64
	Name              string
	Email             string
	Phone             *string
	Role              Role
	HourlyRate        decimal.Decimal
	DepartmentID      *int64
	IsActive          bool
	DeactivatedAt     *time.Time
	DeactivatedBy     *int64
	DeactivatedReason *string

	// Legacy card serial, matched verbatim.
	NFCUID *string
	// SHA-256 hex of the card token. Stored encrypted.
	NFCTokenHash     *string
	NFCTokenIssuedAt *time.Time
	NFCTokenVersion  int

	// Stored encrypted; looked up through a keyed index.
	BiometricID           *string
	BiometricRegisteredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is used in device descriptors and report rows.
func (e Employee) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Email
}
