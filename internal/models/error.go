package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Registration errors, one per validation step
var (
	ErrAdminSelfRegistration = errors.New("admin accounts cannot self-register")
	ErrInvalidStudentEmail   = errors.New("email is not a student address")
	ErrInvalidMatric         = errors.New("invalid matric number")
	ErrWeakPassword          = errors.New("password does not meet requirements")
	ErrStudentStatusExpired  = errors.New("student status expired")
	ErrEmailTaken            = errors.New("email already registered")
	ErrMatricTaken           = errors.New("matric number already registered")
)

// Login errors
var (
	ErrAccountLocked = errors.New("account is temporarily locked")
	ErrUnknownRole   = errors.New("account has an unknown role")
)

// Password reset errors
var (
	ErrResetNotAllowed  = errors.New("password reset is not available for this address")
	ErrNotRegistered    = errors.New("email is not registered")
	ErrInvalidResetCode = errors.New("invalid or expired reset code")
	ErrEmailDelivery    = errors.New("email delivery failed")
)
