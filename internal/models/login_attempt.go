package models

import "time"

// Failure reasons recorded with login attempts
const (
	FailureUnknownEmail    = "unknown_email"
	FailureInvalidPassword = "invalid_password"
	FailureAccountLocked   = "account_locked"
	FailureUnknownRole     = "unknown_role"
)

// LoginAttempt is one row of the append-only login log
type LoginAttempt struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	AccountID     *string   `json:"account_id,omitempty"`
	Success       bool      `json:"success"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	AttemptedAt   time.Time `json:"attempted_at"`
}
