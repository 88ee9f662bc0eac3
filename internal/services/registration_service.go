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
	"github.com/thriftin-utm/account-service/pkg/matric"
)

// RegistrationRepository is the subset of AccountRepository used for sign-up
type RegistrationRepository interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	MatricExists(ctx context.Context, matricNumber string) (bool, error)
	CreateStudent(ctx context.Context, account *models.Account, profile *models.StudentProfile) (*models.Account, error)
}

// ValidateRegistration runs the stateless registration checks in order and
// stops at the first failure. Each failure is a distinct sentinel; the
// password error carries the rule that failed.
func ValidateRegistration(policy *pkgauth.EmailPolicy, email, matricNumber, password string, now time.Time) (*matric.Info, error) {
	if policy.IsStaffEmail(email) {
		return nil, models.ErrAdminSelfRegistration
	}

	if !policy.IsStudentEmail(email) {
		return nil, models.ErrInvalidStudentEmail
	}

	info, err := matric.Parse(matricNumber)
	if err != nil {
		return nil, models.ErrInvalidMatric
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, weakPassword(err)
	}

	// Students whose nominal graduation is more than a year behind are no
	// longer considered enrolled.
	if info.EstimatedGraduationYear() < now.Year()-1 {
		return nil, models.ErrStudentStatusExpired
	}

	return info, nil
}

type RegistrationService struct {
	repo        RegistrationRepository
	policy      *pkgauth.EmailPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewRegistrationService(repo RegistrationRepository, policy *pkgauth.EmailPolicy, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *RegistrationService {
	return &RegistrationService{
		repo:        repo,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Register validates the request, checks uniqueness and creates the account
// and student profile atomically.
func (s *RegistrationService) Register(ctx context.Context, email, matricNumber, password string) (*models.Account, error) {
	email = pkgauth.NormalizeEmail(email)
	matricNumber = matric.Normalize(matricNumber)

	info, err := ValidateRegistration(s.policy, email, matricNumber, password, s.now())
	if err != nil {
		s.logger.Info("registration rejected",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("reason", err.Error()))
		return nil, err
	}

	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if taken {
		return nil, models.ErrEmailTaken
	}

	taken, err = s.repo.MatricExists(ctx, matricNumber)
	if err != nil {
		s.logger.Error("failed to check matric uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if taken {
		return nil, models.ErrMatricTaken
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.repo.CreateStudent(ctx,
		&models.Account{Email: email, PasswordHash: hash},
		&models.StudentProfile{
			MatricNumber:            matricNumber,
			DegreeType:              info.DegreeType,
			FacultyCode:             info.FacultyCode,
			EnrollmentYear:          info.EnrollmentYear,
			StudyDuration:           info.StudyDuration,
			EstimatedGraduationYear: info.EstimatedGraduationYear(),
		},
	)
	if err != nil {
		// A concurrent sign-up can pass the pre-checks and lose on the unique index
		if errors.Is(err, models.ErrEmailTaken) || errors.Is(err, models.ErrMatricTaken) {
			return nil, err
		}
		s.logger.Error("failed to create student account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("student registered", slog.String("account_id", account.ID))
	s.auditLogger.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventStudentRegistered,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
		Metadata: map[string]string{
			"degree_type":  info.DegreeType,
			"faculty_code": info.FacultyCode,
		},
	})

	return account, nil
}

// weakPassword wraps a ValidatePassword failure in ErrWeakPassword, keeping
// the first failed rule in the message and ErrPasswordTooLong in the chain.
func weakPassword(err error) error {
	if errors.Is(err, pkgauth.ErrPasswordTooLong) {
		return fmt.Errorf("%w: %w", models.ErrWeakPassword, err)
	}
	var pwErr *pkgauth.PasswordValidationError
	if errors.As(err, &pwErr) && len(pwErr.Errors) > 0 {
		return fmt.Errorf("%w: %s", models.ErrWeakPassword, pwErr.Errors[0])
	}
	return models.ErrWeakPassword
}
