package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thriftin-utm/account-service/internal/models"
	pkgauth "github.com/thriftin-utm/account-service/pkg/auth"
	pkglogger "github.com/thriftin-utm/account-service/pkg/logger"
)

// ResetRepository is the subset of AccountRepository used by the reset flow
type ResetRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	SetResetCode(ctx context.Context, accountID, codeHash string, expiresAt time.Time) error
	ClearResetCode(ctx context.Context, accountID string) error
	ConsumeResetCode(ctx context.Context, email, codeHash, newPasswordHash string, now time.Time) (string, error)
}

// PasswordResetService issues and redeems emailed 6-digit reset codes.
// Only the SHA-256 of a code is stored.
type PasswordResetService struct {
	repo        ResetRepository
	email       EmailService
	policy      *pkgauth.EmailPolicy
	codeExpiry  time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
	generate    func() (string, error)
}

func NewPasswordResetService(
	repo ResetRepository,
	email EmailService,
	policy *pkgauth.EmailPolicy,
	codeExpiry time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	return &PasswordResetService{
		repo:        repo,
		email:       email,
		policy:      policy,
		codeExpiry:  codeExpiry,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
		generate:    pkgauth.GenerateResetCode,
	}
}

// RequestReset stores a fresh code for a registered student and emails it.
// Any earlier code is replaced. If the email cannot be delivered the code is
// withdrawn and ErrEmailDelivery is returned.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = pkgauth.NormalizeEmail(email)

	if s.policy.IsStaffEmail(email) {
		return models.ErrResetNotAllowed
	}
	if !s.policy.IsStudentEmail(email) {
		return models.ErrInvalidStudentEmail
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotRegistered
		}
		s.logger.Error("failed to get account for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if account.Role != models.RoleStudent || account.Student == nil {
		return models.ErrNotRegistered
	}

	code, err := s.generate()
	if err != nil {
		s.logger.Error("failed to generate reset code", slog.Any("error", err))
		return models.ErrInternalServer
	}
	expiresAt := s.now().Add(s.codeExpiry)

	if err := s.repo.SetResetCode(ctx, account.ID, pkgauth.HashResetCode(code), expiresAt); err != nil {
		s.logger.Error("failed to store reset code", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.email.SendResetCode(ctx, email, code, expiresAt); err != nil {
		s.logger.Error("failed to deliver reset code", slog.String("account_id", account.ID), slog.Any("error", err))
		if clearErr := s.repo.ClearResetCode(ctx, account.ID); clearErr != nil {
			s.logger.Error("failed to withdraw undelivered reset code",
				slog.String("account_id", account.ID),
				slog.Any("error", clearErr))
		}
		return fmt.Errorf("%w: %v", models.ErrEmailDelivery, err)
	}

	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventResetRequested,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
	})

	return nil
}

// ConfirmReset replaces the password when the code matches and has not
// expired. The code is cleared in the same transaction so it works once.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	email = pkgauth.NormalizeEmail(email)
	code = strings.TrimSpace(code)

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return weakPassword(err)
	}

	if !isResetCodeShape(code) {
		s.rejectCode(email, "malformed")
		return models.ErrInvalidResetCode
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	accountID, err := s.repo.ConsumeResetCode(ctx, email, pkgauth.HashResetCode(code), hash, s.now())
	if err != nil {
		if errors.Is(err, models.ErrInvalidResetCode) {
			s.rejectCode(email, "no_match")
			return models.ErrInvalidResetCode
		}
		s.logger.Error("failed to consume reset code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.String("account_id", accountID))
	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		AccountID: accountID,
		Email:     email,
		Success:   true,
	})

	return nil
}

func (s *PasswordResetService) rejectCode(email, reason string) {
	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType:     pkglogger.EventResetCodeRejected,
		Email:         email,
		FailureReason: reason,
	})
}

func isResetCodeShape(code string) bool {
	if len(code) != pkgauth.ResetCodeDigits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
