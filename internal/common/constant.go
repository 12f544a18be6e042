// Package common contains shared constants and sentinel errors used across
// schedkeeper components.
package common

import "time"

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// PermanentLockUntil is the lockout expiry written by an administrative lock.
// It is far enough in the future to behave as a permanent lock.
var PermanentLockUntil = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
