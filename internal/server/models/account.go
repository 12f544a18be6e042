// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Account is a registered principal together with its credential-guard and
// password-reset state.
type Account struct {
	ID             string
	Username       string
	PasswordHash   string
	EncryptedEmail []byte
	Role           Role

	FailedLoginCount int
	// LockoutUntil is nil while the account is active.
	LockoutUntil *time.Time

	// ResetToken and ResetTokenExpiry are either both set or both nil.
	ResetToken       *string
	ResetTokenExpiry *time.Time

	CreatedAt time.Time
}

// LockedAt reports whether the account is locked at the given instant.
func (a *Account) LockedAt(now time.Time) bool {
	return a.LockoutUntil != nil && now.Before(*a.LockoutUntil)
}

// AccountSummary is the admin view of an account.
type AccountSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	IsLocked    bool   `json:"is_locked"`
	FailedCount int    `json:"failed_count"`
}
