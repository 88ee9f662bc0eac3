package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thriftin-utm/account-service/internal/models"
	pkgauth "github.com/thriftin-utm/account-service/pkg/auth"
	pkglogger "github.com/thriftin-utm/account-service/pkg/logger"
)

const (
	defaultAttemptsLimit = 50
	maxAttemptsLimit     = 200
)

// AdminAccountRepository is the subset of AccountRepository methods needed by AdminService.
type AdminAccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	CreateAdmin(ctx context.Context, email, passwordHash string) (*models.Account, error)
	CountByRole(ctx context.Context, role string) (int, error)
	CountLocked(ctx context.Context, now time.Time) (int, error)
	Unlock(ctx context.Context, id string) error
}

// AdminAttemptRepository is the subset of LoginAttemptRepository methods needed by AdminService.
type AdminAttemptRepository interface {
	ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
}

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	Students        int `json:"students"`
	Admins          int `json:"admins"`
	LockedAccounts  int `json:"locked_accounts"`
	FailedLogins24h int `json:"failed_logins_24h"`
}

// AdminService backs the admin dashboard endpoints.
type AdminService struct {
	accounts    AdminAccountRepository
	attempts    AdminAttemptRepository
	policy      *pkgauth.EmailPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAdminService(
	accounts AdminAccountRepository,
	attempts AdminAttemptRepository,
	policy *pkgauth.EmailPolicy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AdminService {
	return &AdminService{
		accounts:    accounts,
		attempts:    attempts,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// GetDashboardStats returns account and login counts.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*DashboardStatsResponse, error) {
	now := s.now()

	students, err := s.accounts.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		s.logger.Error("dashboard: failed to count students", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	admins, err := s.accounts.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.Error("dashboard: failed to count admins", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	locked, err := s.accounts.CountLocked(ctx, now)
	if err != nil {
		s.logger.Error("dashboard: failed to count locked accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	failed, err := s.attempts.CountFailedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		s.logger.Error("dashboard: failed to count failed logins", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &DashboardStatsResponse{
		Students:        students,
		Admins:          admins,
		LockedAccounts:  locked,
		FailedLogins24h: failed,
	}, nil
}

// RecentLoginAttempts returns the newest attempts. limit is clamped to
// [1, 200]; zero or negative means the default of 50.
func (s *AdminService) RecentLoginAttempts(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 {
		limit = defaultAttemptsLimit
	}
	if limit > maxAttemptsLimit {
		limit = maxAttemptsLimit
	}

	attempts, err := s.attempts.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list login attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return attempts, nil
}

// UnlockAccount clears the lock and failure counter of an account.
func (s *AdminService) UnlockAccount(ctx context.Context, adminID, accountID string) error {
	if err := s.accounts.Unlock(ctx, accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to unlock account", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountUnlocked,
		AccountID: accountID,
		Success:   true,
		Metadata:  map[string]string{"unlocked_by": adminID},
	})
	return nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
// It reports whether an account was created.
func (s *AdminService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = pkgauth.NormalizeEmail(email)

	if !s.policy.IsStaffEmail(email) {
		return false, fmt.Errorf("admin email must use the @%s domain", s.policy.StaffDomain)
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			return false, fmt.Errorf("account %s exists with role %q", pkglogger.SanitizedEmail(email), existing.Role)
		}
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("look up admin account: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return false, err
	}

	account, err := s.accounts.CreateAdmin(ctx, email, hash)
	if err != nil {
		// Another replica won the race
		if errors.Is(err, models.ErrEmailTaken) {
			return false, nil
		}
		return false, fmt.Errorf("create admin account: %w", err)
	}

	s.logger.Info("bootstrap admin created", slog.String("account_id", account.ID))
	return true, nil
}
