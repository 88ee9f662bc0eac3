package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/thriftin-utm/account-service/internal/database"
	"github.com/thriftin-utm/account-service/internal/models"
)

// LoginAttemptRepository stores the append-only login log
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record inserts one attempt. AccountID is nil when the email matched no account.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, account_id, success, failure_reason, ip_address, user_agent, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.Email,
		attempt.AccountID,
		attempt.Success,
		attempt.FailureReason,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// ListRecent returns the newest attempts first
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, account_id, success, failure_reason, ip_address, user_agent, attempted_at
		FROM login_attempts
		ORDER BY attempted_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}

	return scanAttemptRows(rows)
}

func scanAttemptRows(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(
			&a.ID, &a.Email, &a.AccountID, &a.Success, &a.FailureReason,
			&a.IPAddress, &a.UserAgent, &a.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return attempts, nil
}

// CountFailedSince counts failed attempts across all accounts since the given time
func (r *LoginAttemptRepository) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE success = false AND attempted_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return count, nil
}
