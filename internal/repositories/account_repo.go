package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thriftin-utm/account-service/internal/database"
	"github.com/thriftin-utm/account-service/internal/models"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `
	a.id, a.email, a.password_hash, a.role, a.failed_attempts, a.locked_until,
	a.last_login_at, a.password_changed_at, a.created_at, a.updated_at,
	sp.matric_number, sp.degree_type, sp.faculty_code, sp.enrollment_year,
	sp.study_duration, sp.estimated_graduation_year, sp.reset_code_hash,
	sp.reset_code_expires_at, sp.created_at`

const accountFrom = `
	FROM accounts a
	LEFT JOIN student_profiles sp ON sp.account_id = a.id`

// scanAccountRow populates an Account and, when the joined profile columns
// are present, its StudentProfile.
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	var (
		matric, degree, faculty          *string
		enrollment, duration, graduation *int
		resetHash                        *string
		resetExpires, profileCreatedAt   *time.Time
	)

	err := scanner.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.FailedAttempts, &a.LockedUntil,
		&a.LastLoginAt, &a.PasswordChangedAt, &a.CreatedAt, &a.UpdatedAt,
		&matric, &degree, &faculty, &enrollment,
		&duration, &graduation, &resetHash,
		&resetExpires, &profileCreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if matric != nil {
		a.Student = &models.StudentProfile{
			AccountID:               a.ID,
			MatricNumber:            *matric,
			DegreeType:              deref(degree),
			FacultyCode:             deref(faculty),
			EnrollmentYear:          derefInt(enrollment),
			StudyDuration:           derefInt(duration),
			EstimatedGraduationYear: derefInt(graduation),
			ResetCodeHash:           resetHash,
			ResetCodeExpiresAt:      resetExpires,
		}
		if profileCreatedAt != nil {
			a.Student.CreatedAt = *profileCreatedAt
		}
	}

	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// GetByID looks an account up by id. A malformed id cannot match any row
// and is reported as ErrNotFound.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + accountColumns + accountFrom + ` WHERE a.id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + accountFrom + ` WHERE a.email = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (r *AccountRepository) MatricExists(ctx context.Context, matric string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM student_profiles WHERE matric_number = $1)`, matric,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check matric: %w", err)
	}
	return exists, nil
}

// CreateStudent inserts the account and its student profile in one
// transaction. Either both rows exist afterwards or neither does.
func (r *AccountRepository) CreateStudent(ctx context.Context, account *models.Account, profile *models.StudentProfile) (*models.Account, error) {
	account.ID = uuid.New().String()
	account.Role = models.RoleStudent

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO accounts (id, email, password_hash, role, password_changed_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING created_at, updated_at, password_changed_at
		`, account.ID, account.Email, account.PasswordHash, account.Role,
		).Scan(&account.CreatedAt, &account.UpdatedAt, &account.PasswordChangedAt)
		if err != nil {
			return err
		}

		profile.AccountID = account.ID
		return tx.QueryRow(ctx, `
			INSERT INTO student_profiles (
				account_id, matric_number, degree_type, faculty_code,
				enrollment_year, study_duration, estimated_graduation_year
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`, profile.AccountID, profile.MatricNumber, profile.DegreeType, profile.FacultyCode,
			profile.EnrollmentYear, profile.StudyDuration, profile.EstimatedGraduationYear,
		).Scan(&profile.CreatedAt)
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.Student = profile
	return account, nil
}

func (r *AccountRepository) CreateAdmin(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, role, password_changed_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at, updated_at, password_changed_at
	`, account.ID, account.Email, account.PasswordHash, account.Role,
	).Scan(&account.CreatedAt, &account.UpdatedAt, &account.PasswordChangedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return account, nil
}

// RegisterFailedLogin increments the failure counter in a single statement.
// When the incremented value reaches threshold the counter resets to 0 and
// locked_until is set to lockUntil; otherwise an expired lock is cleared.
// A lock still active at now is never touched: the row is re-read and
// returned with AlreadyLocked set. The right-hand sides all see the
// pre-update row.
func (r *AccountRepository) RegisterFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.LockState, error) {
	query := `
		UPDATE accounts SET
			failed_attempts = CASE WHEN failed_attempts + 1 >= $2 THEN 0 ELSE failed_attempts + 1 END,
			locked_until    = CASE WHEN failed_attempts + 1 >= $2 THEN $3::timestamptz ELSE NULL END,
			updated_at      = NOW()
		WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $4)
		RETURNING failed_attempts, locked_until
	`

	var state models.LockState
	err := r.db.Pool.QueryRow(ctx, query, id, threshold, lockUntil, now).Scan(&state.FailedAttempts, &state.LockedUntil)
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, database.MapPostgresError(err)
	}

	// Either the account is gone or a concurrent failure locked it
	err = r.db.Pool.QueryRow(ctx,
		`SELECT failed_attempts, locked_until FROM accounts WHERE id = $1`, id,
	).Scan(&state.FailedAttempts, &state.LockedUntil)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	state.AlreadyLocked = true
	return &state, nil
}

// RegisterSuccessfulLogin resets the counter, clears the lock and stamps
// last_login_at.
func (r *AccountRepository) RegisterSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE accounts
		SET failed_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Unlock(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE accounts
		SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetResetCode stores the hash of a reset code, replacing any earlier one.
func (r *AccountRepository) SetResetCode(ctx context.Context, accountID, codeHash string, expiresAt time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE student_profiles
		SET reset_code_hash = $2, reset_code_expires_at = $3
		WHERE account_id = $1
	`, accountID, codeHash, expiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) ClearResetCode(ctx context.Context, accountID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE student_profiles
		SET reset_code_hash = NULL, reset_code_expires_at = NULL
		WHERE account_id = $1
	`, accountID)
	return database.MapPostgresError(err)
}

// ConsumeResetCode clears a matching, unexpired reset code and replaces the
// password hash in one transaction. It returns the account id, or
// ErrInvalidResetCode when no code matches.
func (r *AccountRepository) ConsumeResetCode(ctx context.Context, email, codeHash, newPasswordHash string, now time.Time) (string, error) {
	var accountID string

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE student_profiles sp
			SET reset_code_hash = NULL, reset_code_expires_at = NULL
			FROM accounts a
			WHERE sp.account_id = a.id
			  AND a.email = $1
			  AND sp.reset_code_hash = $2
			  AND sp.reset_code_expires_at > $3
			RETURNING sp.account_id
		`, email, codeHash, now).Scan(&accountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrInvalidResetCode
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE accounts
			SET password_hash = $2, password_changed_at = $3, updated_at = NOW()
			WHERE id = $1
		`, accountID, newPasswordHash, now)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidResetCode) {
			return "", err
		}
		return "", database.MapPostgresError(err)
	}

	return accountID, nil
}

// ClearExpiredResetCodes removes reset codes whose expiry is at or before now.
func (r *AccountRepository) ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE student_profiles
		SET reset_code_hash = NULL, reset_code_expires_at = NULL
		WHERE reset_code_expires_at IS NOT NULL AND reset_code_expires_at <= $1
	`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *AccountRepository) CountByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accounts by role: %w", err)
	}
	return count, nil
}

func (r *AccountRepository) CountLocked(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE locked_until > $1`, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count locked accounts: %w", err)
	}
	return count, nil
}
