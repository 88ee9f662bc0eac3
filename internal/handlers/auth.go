package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/models"
	"github.com/thriftin-utm/account-service/internal/services"
	pkgauth "github.com/thriftin-utm/account-service/pkg/auth"
	pkghttp "github.com/thriftin-utm/account-service/pkg/http"
)

const genericFailure = "Something went wrong, please try again later"

// AuthServiceInterface is the login side of the account service
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResponse, error)
	CurrentUser(ctx context.Context, accountID string) (*services.UserResponse, error)
}

type RegistrationServiceInterface interface {
	Register(ctx context.Context, email, matricNumber, password string) (*models.Account, error)
}

type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, email, code, newPassword string) error
}

// AuthHandler serves the public /auth endpoints and /auth/me
type AuthHandler struct {
	auth         AuthServiceInterface
	registration RegistrationServiceInterface
	reset        PasswordResetServiceInterface
	ipConfig     *pkghttp.IPConfig
}

func NewAuthHandler(
	authService AuthServiceInterface,
	registration RegistrationServiceInterface,
	reset PasswordResetServiceInterface,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		registration: registration,
		reset:        reset,
		ipConfig:     ipConfig,
	}
}

// Request DTOs. Email fields carry no "email" tag: the domain checks in
// the services report the more specific error.

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,max=255"`
	Matric   string `json:"matric" validate:"required,max=20"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

type ResetRequestRequest struct {
	Email string `json:"email" validate:"required,max=255"`
}

type ResetConfirmRequest struct {
	Email       string `json:"email" validate:"required,max=255"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.registration.Register(r.Context(), req.Email, req.Matric, req.Password); err != nil {
		writeRegistrationError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusCreated, "Registration successful")
}

func writeRegistrationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAdminSelfRegistration):
		pkghttp.WriteError(w, http.StatusForbidden, "admin_self_registration", "Admin accounts cannot self-register")
	case errors.Is(err, models.ErrInvalidStudentEmail):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_student_email", "Please use your student email (@graduate.utm.my)")
	case errors.Is(err, models.ErrInvalidMatric):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_matric", "Invalid matric number format")
	case errors.Is(err, models.ErrWeakPassword):
		writeWeakPassword(w, err)
	case errors.Is(err, models.ErrStudentStatusExpired):
		pkghttp.WriteError(w, http.StatusForbidden, "student_status_expired", "Your student status has expired")
	case errors.Is(err, models.ErrEmailTaken):
		pkghttp.WriteError(w, http.StatusConflict, "email_taken", "This email is already registered")
	case errors.Is(err, models.ErrMatricTaken):
		pkghttp.WriteError(w, http.StatusConflict, "matric_taken", "This matric number is already registered")
	default:
		pkghttp.WriteInternalError(w, genericFailure)
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	client := pkghttp.ExtractClient(r, h.ipConfig)

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password, client.IPAddress, client.UserAgent)
	if err != nil {
		var locked *services.LockedError
		switch {
		case errors.As(err, &locked):
			writeLocked(w, locked)
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Incorrect email or password")
		case errors.Is(err, models.ErrUnknownRole):
			pkghttp.WriteError(w, http.StatusForbidden, "unknown_role", "Your account type is not recognised, please contact support")
		default:
			pkghttp.WriteInternalError(w, genericFailure)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func writeLocked(w http.ResponseWriter, locked *services.LockedError) {
	minutes := locked.RemainingMinutes()
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(locked.Remaining.Round(time.Second).Seconds())))

	unlockAt := "unlocks at " + locked.LockedUntil.UTC().Format(time.RFC3339)
	if locked.JustLocked {
		pkghttp.WriteLocked(w, fmt.Sprintf(
			"Too many failed attempts. Your account has been locked for %d minutes.", minutes), unlockAt)
		return
	}
	pkghttp.WriteLocked(w, fmt.Sprintf(
		"Your account is temporarily locked. Try again in %d minutes.", minutes), unlockAt)
}

func writeWeakPassword(w http.ResponseWriter, err error) {
	message := "Password must be at least 8 characters and contain a letter and a digit"
	if errors.Is(err, pkgauth.ErrPasswordTooLong) {
		message = fmt.Sprintf("Password must be at most %d bytes", pkgauth.MaxPasswordBytes)
	}
	pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password", message, err.Error())
}

// RequestPasswordReset handles POST /auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.reset.RequestReset(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, models.ErrResetNotAllowed):
			pkghttp.WriteError(w, http.StatusForbidden, "reset_not_allowed", "Admin passwords cannot be reset here")
		case errors.Is(err, models.ErrInvalidStudentEmail):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_student_email", "Please use your student email (@graduate.utm.my)")
		case errors.Is(err, models.ErrNotRegistered):
			pkghttp.WriteError(w, http.StatusNotFound, "not_registered", "No account is registered with this email")
		case errors.Is(err, models.ErrEmailDelivery):
			pkghttp.WriteServiceUnavailable(w, "We could not send the reset code, please try again later")
		default:
			pkghttp.WriteInternalError(w, genericFailure)
		}
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "A reset code has been sent to your email")
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.reset.ConfirmReset(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrWeakPassword):
			writeWeakPassword(w, err)
		case errors.Is(err, models.ErrInvalidResetCode):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_reset_code", "Invalid or expired reset code")
		default:
			pkghttp.WriteInternalError(w, genericFailure)
		}
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password has been reset, you can now log in")
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
			return
		}
		pkghttp.WriteInternalError(w, genericFailure)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}
