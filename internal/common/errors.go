// Package common defines shared constants and sentinel errors used across
// the service, repository and transport layers of schedkeeper. Callers should
// use errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors (caller's fault, no state change).
	ErrValidation = errors.New("validation error")

	// Credential errors. Unknown user and wrong password are deliberately
	// the same value.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Password reset errors. No distinction is made between a missing,
	// wrong or expired token.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// Messaging errors.
	ErrRecipientKeyMissing = errors.New("recipient key missing")
	ErrOwnKeyMissing       = errors.New("key pair missing")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// LockedError reports that the account is locked until the given instant.
// It matches ErrAccountLocked with errors.Is.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }
