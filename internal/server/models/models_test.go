package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleStaff.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("ROOT").Valid())
	assert.False(t, Role("").Valid())
}

func TestAccount_LockedAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)

	active := &Account{}
	assert.False(t, active.LockedAt(now))

	locked := &Account{LockoutUntil: &until}
	assert.True(t, locked.LockedAt(now))
	assert.True(t, locked.LockedAt(until.Add(-time.Second)))
	assert.False(t, locked.LockedAt(until), "lock ends exactly at until")
	assert.False(t, locked.LockedAt(until.Add(time.Second)))
}

func TestAuditFailed(t *testing.T) {
	assert.True(t, AuditFailed(AuditLoginFailure))
	assert.True(t, AuditFailed(AuditLoginDeniedLocked))
	assert.False(t, AuditFailed(AuditLoginSuccess))
	assert.False(t, AuditFailed(AuditAdminLock))
}

func TestMessageFormat_String(t *testing.T) {
	assert.Equal(t, "hybrid", FormatHybridWrapped.String())
	assert.Equal(t, "legacy", FormatLegacyDirect.String())
	assert.Equal(t, "unknown", MessageFormat(9).String())
}
