package identity

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
)

// IdentityService maps a presented credential to an active employee. It never
// changes attendance state.
type IdentityService interface {
	Resolve(ctx context.Context, cred Credential) (employee.Employee, error)
	IssueNFCPayload(ctx context.Context, req IssueNFCPayloadRequest) (NFCPayloadResponse, error)
	RegisterBiometric(ctx context.Context, req RegisterBiometricRequest) error

	// RegisterNFCUID enrolls a legacy card serial, replacing any previous one.
	RegisterNFCUID(ctx context.Context, req RegisterNFCUIDRequest) (NFCUIDResponse, error)
}
