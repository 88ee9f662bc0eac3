package models

import (
	"time"
)

// Account roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Account is the identity record shared by students and admins
type Account struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              string
	FailedAttempts    int
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Student is set when Role is RoleStudent and the profile row exists
	Student *StudentProfile
}

// IsLocked reports whether the lock window is still open at now
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// StudentProfile is the 1:1 student extension of an Account
type StudentProfile struct {
	AccountID               string
	MatricNumber            string
	DegreeType              string
	FacultyCode             string
	EnrollmentYear          int
	StudyDuration           int
	EstimatedGraduationYear int
	ResetCodeHash           *string
	ResetCodeExpiresAt      *time.Time
	CreatedAt               time.Time
}

// LockState is the counter/lock pair after a failed login has been applied.
// AlreadyLocked means another request locked the account first and this
// failure was not counted.
type LockState struct {
	FailedAttempts int
	LockedUntil    *time.Time
	AlreadyLocked  bool
}
