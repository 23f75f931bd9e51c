package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/crypto"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Field names bind ciphertexts to their column.
const (
	fieldNFCTokenHash = "employees.nfc_token_hash"
	fieldBiometricID  = "employees.biometric_id"
)

const employeeColumns = `
	id, name, email, phone, role, hourly_rate, department_id,
	is_active, deactivated_at, deactivated_by, deactivated_reason,
	nfc_uid, nfc_token_hash, nfc_token_issued_at, nfc_token_version,
	biometric_id, biometric_registered_at,
	created_at, updated_at`

type employeeRepositoryImpl struct {
	db     *database.DB
	cipher *crypto.FieldCipher
}

func NewEmployeeRepository(db *database.DB, cipher *crypto.FieldCipher) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db, cipher: cipher}
}

func (e *employeeRepositoryImpl) scan(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.Name, &emp.Email, &emp.Phone, &emp.Role, &emp.HourlyRate, &emp.DepartmentID,
		&emp.IsActive, &emp.DeactivatedAt, &emp.DeactivatedBy, &emp.DeactivatedReason,
		&emp.NFCUID, &emp.NFCTokenHash, &emp.NFCTokenIssuedAt, &emp.NFCTokenVersion,
		&emp.BiometricID, &emp.BiometricRegisteredAt,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	if err != nil {
		return employee.Employee{}, err
	}

	if emp.NFCTokenHash, err = e.decrypt(fieldNFCTokenHash, emp.NFCTokenHash); err != nil {
		return employee.Employee{}, err
	}
	if emp.BiometricID, err = e.decrypt(fieldBiometricID, emp.BiometricID); err != nil {
		return employee.Employee{}, err
	}
	return emp, nil
}

func (e *employeeRepositoryImpl) decrypt(field string, stored *string) (*string, error) {
	if stored == nil {
		return nil, nil
	}
	plain, err := e.cipher.Decrypt(field, *stored)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", field, err)
	}
	return &plain, nil
}

func (e *employeeRepositoryImpl) getOne(ctx context.Context, where string, arg interface{}) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE ` + where
	emp, err := e.scan(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id int64) (employee.Employee, error) {
	return e.getOne(ctx, "id = $1", id)
}

// GetByNFCUID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByNFCUID(ctx context.Context, uid string) (employee.Employee, error) {
	if uid == "" {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e.getOne(ctx, "nfc_uid = $1", uid)
}

// GetByBiometricID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByBiometricID(ctx context.Context, biometricID string) (employee.Employee, error) {
	if biometricID == "" {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e.getOne(ctx, "biometric_index = $1", e.cipher.BlindIndex(fieldBiometricID, biometricID))
}

// UpdateNFCToken implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) UpdateNFCToken(ctx context.Context, id int64, tokenHash string, issuedAt time.Time, version int) error {
	q := GetQuerier(ctx, e.db)

	sealed, err := e.cipher.Encrypt(fieldNFCTokenHash, tokenHash)
	if err != nil {
		return err
	}

	query := `
		UPDATE employees
		SET nfc_token_hash = $2, nfc_token_issued_at = $3, nfc_token_version = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, id, sealed, issuedAt, version)
	if err != nil {
		return fmt.Errorf("failed to update nfc token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// UpdateNFCUID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) UpdateNFCUID(ctx context.Context, id int64, uid string) (time.Time, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		UPDATE employees
		SET nfc_uid = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	var updatedAt time.Time
	if err := q.QueryRow(ctx, query, id, uid).Scan(&updatedAt); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return time.Time{}, employee.ErrEmployeeNotFound
		case errors.As(err, &pgErr) && pgErr.Code == "23505":
			return time.Time{}, employee.ErrNFCUIDTaken
		}
		return time.Time{}, fmt.Errorf("failed to update nfc uid: %w", err)
	}
	return updatedAt, nil
}

// UpdateBiometric implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) UpdateBiometric(ctx context.Context, id int64, biometricID string, registeredAt time.Time) error {
	q := GetQuerier(ctx, e.db)

	sealed, err := e.cipher.Encrypt(fieldBiometricID, biometricID)
	if err != nil {
		return err
	}

	query := `
		UPDATE employees
		SET biometric_id = $2, biometric_index = $3, biometric_registered_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, id, sealed, e.cipher.BlindIndex(fieldBiometricID, biometricID), registeredAt)
	if err != nil {
		return fmt.Errorf("failed to update biometric id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// ListStaff implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListStaff(ctx context.Context, departmentID *int64) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE role = $1`
	args := []interface{}{employee.RoleStaff}
	if departmentID != nil {
		query += ` AND department_id = $2`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY name, id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := e.scan(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}
