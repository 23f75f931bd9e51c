package identity

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type IssueNFCPayloadRequest struct {
	EmployeeID int64 `json:"-"`
	Version    int   `json:"version" validate:"omitempty,min=1"`
}

func (r *IssueNFCPayloadRequest) Validate() error {
	if errs := validator.Struct(r); errs != nil {
		return errs
	}
	return nil
}

type NFCPayloadResponse struct {
	EmployeeID int64      `json:"employee_id"`
	Version    int        `json:"version"`
	Payload    string     `json:"payload"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type RegisterBiometricRequest struct {
	EmployeeID  int64  `json:"-"`
	BiometricID string `json:"biometric_id" validate:"required,max=255"`
}

func (r *RegisterBiometricRequest) Validate() error {
	if errs := validator.Struct(r); errs != nil {
		return errs
	}
	return nil
}

type RegisterNFCUIDRequest struct {
	EmployeeID int64  `json:"-"`
	NFCUID     string `json:"nfc_uid" validate:"required,max=100"`
}

func (r *RegisterNFCUIDRequest) Validate() error {
	if errs := validator.Struct(r); errs != nil {
		return errs
	}
	return nil
}

type NFCUIDResponse struct {
	EmployeeID   int64     `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	OldNFCUID    *string   `json:"old_nfc_uid"`
	NewNFCUID    string    `json:"new_nfc_uid"`
	UpdatedAt    time.Time `json:"updated_at"`
}
