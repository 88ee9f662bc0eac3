package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/models"
	pkgauth "github.com/thriftin-utm/account-service/pkg/auth"
	pkglogger "github.com/thriftin-utm/account-service/pkg/logger"
)

// AuthAccountRepository is the subset of AccountRepository used by login
type AuthAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	RegisterFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.LockState, error)
	RegisterSuccessfulLogin(ctx context.Context, id string, at time.Time) error
}

// LoginAttemptRecorder appends to the login log
type LoginAttemptRecorder interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
}

// LockoutPolicy is the failed-login threshold and the lock window it triggers
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// LockedError is returned when a login is refused because the account is
// locked. JustLocked is set when this attempt is the one that tripped the lock.
type LockedError struct {
	JustLocked  bool
	LockedUntil time.Time
	Remaining   time.Duration
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return fmt.Sprintf("account locked for %d minutes after too many failed attempts", e.RemainingMinutes())
	}
	return fmt.Sprintf("account is locked, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool {
	return target == models.ErrAccountLocked
}

// RemainingMinutes rounds up so a lock with seconds left still reads as 1 minute
func (e *LockedError) RemainingMinutes() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}

// UserResponse is the role-shaped account returned by login and /auth/me.
// Student fields are omitted for admins.
type UserResponse struct {
	ID                      string `json:"id"`
	Email                   string `json:"email"`
	UserType                string `json:"user_type"`
	MatricNumber            string `json:"matric_number,omitempty"`
	DegreeType              string `json:"degree_type,omitempty"`
	FacultyCode             string `json:"faculty_code,omitempty"`
	EnrollmentYear          int    `json:"enrollment_year,omitempty"`
	EstimatedGraduationYear int    `json:"estimated_graduation_year,omitempty"`
}

type LoginResponse struct {
	Message     string        `json:"message"`
	AccessToken string        `json:"access_token"`
	User        *UserResponse `json:"user"`
}

// AuthService runs the login and lockout state machine
type AuthService struct {
	accounts    AuthAccountRepository
	attempts    LoginAttemptRecorder
	email       EmailService
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	policy      LockoutPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAuthService(
	accounts AuthAccountRepository,
	attempts LoginAttemptRecorder,
	email EmailService,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	policy LockoutPolicy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		accounts:    accounts,
		attempts:    attempts,
		email:       email,
		tm:          tm,
		timing:      timing,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Login checks credentials and applies the lockout rules:
//   - unknown email: ErrUnauthorized
//   - locked account: *LockedError, password not evaluated, counters untouched
//   - wrong password: counter incremented; at the threshold the account is
//     locked, the holder is emailed and *LockedError{JustLocked: true} returned
//   - right password: counter and lock cleared, token issued
//
// Every outcome is recorded in the login log.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*LoginResponse, error) {
	start := time.Now()
	email = pkgauth.NormalizeEmail(email)
	client := clientMeta{email: email, ip: ipAddress, userAgent: userAgent}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordFailure(ctx, client, nil, models.FailureUnknownEmail)
			s.timing.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	if account.IsLocked(now) {
		s.recordFailure(ctx, client, &account.ID, models.FailureAccountLocked)
		return nil, &LockedError{
			LockedUntil: *account.LockedUntil,
			Remaining:   account.LockedUntil.Sub(now),
		}
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, s.handleWrongPassword(ctx, client, account, now, start)
	}

	if account.Role != models.RoleStudent && account.Role != models.RoleAdmin {
		s.logger.Error("account has unknown role",
			slog.String("account_id", account.ID),
			slog.String("role", account.Role))
		s.recordFailure(ctx, client, &account.ID, models.FailureUnknownRole)
		return nil, models.ErrUnknownRole
	}

	if err := s.accounts.RegisterSuccessfulLogin(ctx, account.ID, now); err != nil {
		s.logger.Error("failed to reset login counters", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(account.ID, account.Email, account.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.record(ctx, &models.LoginAttempt{
		Email:     email,
		AccountID: &account.ID,
		Success:   true,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		AccountID: account.ID,
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})
	s.logger.Info("account logged in", slog.String("account_id", account.ID), slog.String("role", account.Role))

	return &LoginResponse{
		Message:     "Login successful",
		AccessToken: accessToken,
		User:        NewUserResponse(account),
	}, nil
}

func (s *AuthService) handleWrongPassword(ctx context.Context, client clientMeta, account *models.Account, now, start time.Time) error {
	lockUntil := now.Add(s.policy.LockoutDuration)

	state, err := s.accounts.RegisterFailedLogin(ctx, account.ID, s.policy.MaxFailedAttempts, lockUntil, now)
	if err != nil {
		s.logger.Error("failed to register failed login", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// A concurrent failure locked the account after it was read
	if state.AlreadyLocked {
		s.recordFailure(ctx, client, &account.ID, models.FailureAccountLocked)
		if state.LockedUntil == nil || !now.Before(*state.LockedUntil) {
			s.timing.WaitFrom(start, false)
			return models.ErrUnauthorized
		}
		return &LockedError{
			LockedUntil: *state.LockedUntil,
			Remaining:   state.LockedUntil.Sub(now),
		}
	}

	s.recordFailure(ctx, client, &account.ID, models.FailureInvalidPassword)

	if state.LockedUntil == nil {
		s.timing.WaitFrom(start, false)
		return models.ErrUnauthorized
	}

	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountLocked,
		AccountID: account.ID,
		Email:     client.email,
		IPAddress: client.ip,
		UserAgent: client.userAgent,
		Metadata: map[string]string{
			"locked_until": state.LockedUntil.UTC().Format(time.RFC3339),
			"threshold":    strconv.Itoa(s.policy.MaxFailedAttempts),
		},
	})

	// The lock stands whether or not the holder could be told about it
	if err := s.email.SendLockNotification(ctx, account.Email, *state.LockedUntil); err != nil {
		s.logger.Warn("failed to deliver lock notification",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	return &LockedError{
		JustLocked:  true,
		LockedUntil: *state.LockedUntil,
		Remaining:   state.LockedUntil.Sub(now),
	}
}

// CurrentUser returns the role-shaped view of an authenticated account
func (s *AuthService) CurrentUser(ctx context.Context, accountID string) (*UserResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return NewUserResponse(account), nil
}

// NewUserResponse shapes an account for clients. Admins get identity only.
func NewUserResponse(account *models.Account) *UserResponse {
	resp := &UserResponse{
		ID:       account.ID,
		Email:    account.Email,
		UserType: account.Role,
	}
	if account.Role == models.RoleStudent && account.Student != nil {
		resp.MatricNumber = account.Student.MatricNumber
		resp.DegreeType = account.Student.DegreeType
		resp.FacultyCode = account.Student.FacultyCode
		resp.EnrollmentYear = account.Student.EnrollmentYear
		resp.EstimatedGraduationYear = account.Student.EstimatedGraduationYear
	}
	return resp
}

type clientMeta struct {
	email     string
	ip        string
	userAgent string
}

func (s *AuthService) recordFailure(ctx context.Context, client clientMeta, accountID *string, reason string) {
	s.record(ctx, &models.LoginAttempt{
		Email:         client.email,
		AccountID:     accountID,
		Success:       false,
		FailureReason: &reason,
		IPAddress:     client.ip,
		UserAgent:     client.userAgent,
	})

	event := pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		Email:         client.email,
		IPAddress:     client.ip,
		UserAgent:     client.userAgent,
		FailureReason: reason,
	}
	if accountID != nil {
		event.AccountID = *accountID
	}
	s.auditLogger.Log(event)
}

// record writes to the login log. A logging failure never changes the login
// outcome.
func (s *AuthService) record(ctx context.Context, attempt *models.LoginAttempt) {
	attempt.AttemptedAt = s.now()
	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}
}
