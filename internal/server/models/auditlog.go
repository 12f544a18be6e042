package models

import (
	"strings"
	"time"
)

// Audit actions recorded by the services.
const (
	AuditLoginSuccess      = "LOGIN_SUCCESS"
	AuditLoginFailure      = "LOGIN_FAILURE"
	AuditLoginDeniedLocked = "LOGIN_DENIED_LOCKED"
	AuditAccountLocked     = "ACCOUNT_LOCKED"
	AuditAdminLock         = "ADMIN_LOCK"
	AuditAdminUnlock       = "ADMIN_UNLOCK"
	AuditAdminPromote      = "ADMIN_PROMOTE"
	AuditAdminDelete       = "ADMIN_DELETE"
	AuditPasswordReset     = "PASSWORD_RESET"
	AuditMessageSent       = "MESSAGE_SENT"
	AuditRegister          = "REGISTER"
)

const (
	ObjectAccount = "ACCOUNT"
	ObjectMessage = "MESSAGE"
)

type AuditLog struct {
	ID int64
	// AccountID is nil for anonymous or anonymised rows.
	AccountID  *string
	Username   *string
	Action     string
	ObjectType string
	ObjectID   string
	CreatedAt  time.Time
}

// AuditFailed reports whether action denotes a rejected attempt.
func AuditFailed(action string) bool {
	return strings.Contains(action, "FAILURE") || strings.Contains(action, "DENIED")
}

// AuditLogView is the admin view of an audit row.
type AuditLogView struct {
	Time   string `json:"time"`
	User   string `json:"user"`
	Action string `json:"action"`
	Object string `json:"object"`
	Result string `json:"result"`
}
