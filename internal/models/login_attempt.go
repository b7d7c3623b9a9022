package models

import "time"

// LoginAttempt is one audited login, kept until ExpiresAt
type LoginAttempt struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	IPAddress     string    `db:"ip_address"`
	UserAgent     string    `db:"user_agent"`
	AttemptTime   time.Time `db:"attempt_time"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
	ExpiresAt     time.Time `db:"expires_at"`
}

// Failure reasons stored with unsuccessful attempts
const (
	FailureInvalidCredentials = "invalid_credentials"
	FailureAccountInactive    = "account_inactive"
	FailureHostBlocked        = "host_blocked"
)
