package employee

import (
	"context"
	"time"
)

//go:generate mockgen -source=repository.go -destination=mock/repository.go -package=mock

// EmployeeRepository reads employees for the attendance core. Encrypted
// columns are decrypted transparently by the implementation.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id int64) (Employee, error)

	// GetByNFCUID matches the legacy card serial exactly.
	GetByNFCUID(ctx context.Context, uid string) (Employee, error)

	// GetByBiometricID matches the registered biometric identifier exactly.
	GetByBiometricID(ctx context.Context, biometricID string) (Employee, error)

	UpdateNFCToken(ctx context.Context, id int64, tokenHash string, issuedAt time.Time, version int) error

	// UpdateNFCUID assigns the legacy card serial. It returns ErrNFCUIDTaken
	// when another employee already holds uid.
	UpdateNFCUID(ctx context.Context, id int64, uid string) (time.Time, error)
	UpdateBiometric(ctx context.Context, id int64, biometricID string, registeredAt time.Time) error

	// ListStaff returns active and inactive staff, optionally limited to a department.
	ListStaff(ctx context.Context, departmentID *int64) ([]Employee, error)
}
