package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/crypto"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

const nfcTokenLength = 48

type identityServiceImpl struct {
	employeeRepo employee.EmployeeRepository
	kioskService kiosk.KioskService
	nfcTTL       time.Duration
	now          func() time.Time
}

// Resolve implements identity.IdentityService.
func (s *identityServiceImpl) Resolve(ctx context.Context, cred identity.Credential) (employee.Employee, error) {
	var (
		emp employee.Employee
		err error
	)

	switch cred.Type {
	case identity.CredentialNFC:
		emp, err = s.resolveNFC(ctx, cred.Value)
	case identity.CredentialBiometric:
		emp, err = s.lookup(s.employeeRepo.GetByBiometricID(ctx, strings.TrimSpace(cred.Value)))
	case identity.CredentialSession:
		emp, err = s.byUserID(ctx, cred.UserID)
	case identity.CredentialQR:
		emp, err = s.byUserID(ctx, cred.UserID)
		if err == nil && emp.IsActive {
			if _, err = s.kioskService.Consume(ctx, cred.Code); err != nil {
				return employee.Employee{}, err
			}
		}
	default:
		return employee.Employee{}, identity.ErrUnsupportedType
	}
	if err != nil {
		return employee.Employee{}, err
	}

	if !emp.IsActive {
		return employee.Employee{}, identity.ErrAccountLocked
	}
	return emp, nil
}

// resolveNFC tries the signed card payload first and falls back to the legacy
// card serial, raw then normalized.
func (s *identityServiceImpl) resolveNFC(ctx context.Context, raw string) (employee.Employee, error) {
	normalized := identity.NormalizeNFC(raw)

	if payload, ok := parseNFCPayload(normalized); ok {
		emp, err := s.verifyPayload(ctx, payload)
		if err == nil {
			return emp, nil
		}
		if !errors.Is(err, identity.ErrIdentityNotFound) {
			return employee.Employee{}, err
		}
	}

	candidates := []string{raw}
	if normalized != raw && normalized != "" {
		candidates = append(candidates, normalized)
	}
	for _, uid := range candidates {
		emp, err := s.lookup(s.employeeRepo.GetByNFCUID(ctx, uid))
		if err == nil {
			return emp, nil
		}
		if !errors.Is(err, identity.ErrIdentityNotFound) {
			return employee.Employee{}, err
		}
	}
	return employee.Employee{}, identity.ErrIdentityNotFound
}

func (s *identityServiceImpl) verifyPayload(ctx context.Context, p nfcPayload) (employee.Employee, error) {
	emp, err := s.lookup(s.employeeRepo.GetByID(ctx, p.employeeID))
	if err != nil {
		return employee.Employee{}, err
	}
	if emp.NFCTokenHash == nil || *emp.NFCTokenHash == "" {
		return employee.Employee{}, identity.ErrIdentityNotFound
	}
	if s.nfcTTL > 0 && emp.NFCTokenIssuedAt != nil && emp.NFCTokenIssuedAt.Before(s.now().Add(-s.nfcTTL)) {
		return employee.Employee{}, identity.ErrIdentityNotFound
	}
	if !crypto.EqualHex(*emp.NFCTokenHash, crypto.SHA256Hex(p.token)) {
		return employee.Employee{}, identity.ErrIdentityNotFound
	}
	return emp, nil
}

func (s *identityServiceImpl) byUserID(ctx context.Context, userID int64) (employee.Employee, error) {
	if userID <= 0 {
		return employee.Employee{}, identity.ErrIdentityNotFound
	}
	return s.lookup(s.employeeRepo.GetByID(ctx, userID))
}

func (s *identityServiceImpl) lookup(emp employee.Employee, err error) (employee.Employee, error) {
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.Employee{}, identity.ErrIdentityNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to look up employee: %w", err)
	}
	return emp, nil
}

// IssueNFCPayload implements identity.IdentityService.
func (s *identityServiceImpl) IssueNFCPayload(ctx context.Context, req identity.IssueNFCPayloadRequest) (identity.NFCPayloadResponse, error) {
	if err := req.Validate(); err != nil {
		return identity.NFCPayloadResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return identity.NFCPayloadResponse{}, err
	}

	version := req.Version
	if version == 0 {
		version = emp.NFCTokenVersion + 1
	}

	token, err := utils.RandomToken(nfcTokenLength)
	if err != nil {
		return identity.NFCPayloadResponse{}, fmt.Errorf("failed to generate nfc token: %w", err)
	}

	issuedAt := s.now()
	if err := s.employeeRepo.UpdateNFCToken(ctx, emp.ID, crypto.SHA256Hex(token), issuedAt, version); err != nil {
		return identity.NFCPayloadResponse{}, fmt.Errorf("failed to store nfc token: %w", err)
	}

	resp := identity.NFCPayloadResponse{
		EmployeeID: emp.ID,
		Version:    version,
		Payload:    buildNFCPayload(version, emp.ID, token),
		IssuedAt:   issuedAt,
	}
	if s.nfcTTL > 0 {
		expires := issuedAt.Add(s.nfcTTL)
		resp.ExpiresAt = &expires
	}
	return resp, nil
}

// RegisterBiometric implements identity.IdentityService.
func (s *identityServiceImpl) RegisterBiometric(ctx context.Context, req identity.RegisterBiometricRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	biometricID := strings.TrimSpace(req.BiometricID)

	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID); err != nil {
		return err
	}

	owner, err := s.employeeRepo.GetByBiometricID(ctx, biometricID)
	switch {
	case err == nil && owner.ID != req.EmployeeID:
		return identity.ErrBiometricTaken
	case err != nil && !errors.Is(err, employee.ErrEmployeeNotFound):
		return fmt.Errorf("failed to check biometric id: %w", err)
	}

	if err := s.employeeRepo.UpdateBiometric(ctx, req.EmployeeID, biometricID, s.now()); err != nil {
		return fmt.Errorf("failed to store biometric id: %w", err)
	}
	return nil
}

// RegisterNFCUID implements identity.IdentityService. The serial is stored
// normalized so it matches what the resolver looks up.
func (s *identityServiceImpl) RegisterNFCUID(ctx context.Context, req identity.RegisterNFCUIDRequest) (identity.NFCUIDResponse, error) {
	req.NFCUID = identity.NormalizeNFC(req.NFCUID)
	if err := req.Validate(); err != nil {
		return identity.NFCUIDResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return identity.NFCUIDResponse{}, err
	}

	owner, err := s.employeeRepo.GetByNFCUID(ctx, req.NFCUID)
	switch {
	case err == nil && owner.ID != emp.ID:
		return identity.NFCUIDResponse{}, identity.ErrNFCUIDTaken
	case err != nil && !errors.Is(err, employee.ErrEmployeeNotFound):
		return identity.NFCUIDResponse{}, fmt.Errorf("failed to check nfc uid: %w", err)
	}

	updatedAt, err := s.employeeRepo.UpdateNFCUID(ctx, emp.ID, req.NFCUID)
	if err != nil {
		// A concurrent enrollment can still win the unique index.
		if errors.Is(err, employee.ErrNFCUIDTaken) {
			return identity.NFCUIDResponse{}, identity.ErrNFCUIDTaken
		}
		return identity.NFCUIDResponse{}, fmt.Errorf("failed to store nfc uid: %w", err)
	}

	return identity.NFCUIDResponse{
		EmployeeID:   emp.ID,
		EmployeeName: emp.DisplayName(),
		OldNFCUID:    emp.NFCUID,
		NewNFCUID:    req.NFCUID,
		UpdatedAt:    updatedAt,
	}, nil
}

type nfcPayload struct {
	version    int
	employeeID int64
	token      string
}

func parseNFCPayload(s string) (nfcPayload, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != identity.NFCPayloadPrefix || !strings.HasPrefix(parts[1], "v") {
		return nfcPayload{}, false
	}

	version, err := strconv.Atoi(parts[1][1:])
	if err != nil || version < 1 {
		return nfcPayload{}, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id < 1 {
		return nfcPayload{}, false
	}
	if parts[3] == "" {
		return nfcPayload{}, false
	}
	return nfcPayload{version: version, employeeID: id, token: parts[3]}, true
}

func buildNFCPayload(version int, employeeID int64, token string) string {
	return fmt.Sprintf("%s:v%d:%d:%s", identity.NFCPayloadPrefix, version, employeeID, token)
}

func NewIdentityService(employeeRepo employee.EmployeeRepository, kioskService kiosk.KioskService, nfcTTLDays int, now func() time.Time) identity.IdentityService {
	if now == nil {
		now = time.Now
	}
	return &identityServiceImpl{
		employeeRepo: employeeRepo,
		kioskService: kioskService,
		nfcTTL:       time.Duration(nfcTTLDays) * 24 * time.Hour,
		now:          now,
	}
}
