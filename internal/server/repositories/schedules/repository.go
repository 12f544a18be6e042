// Package schedules persists account schedules. Only the cleanup needed by
// account deletion lives here; schedule CRUD is served elsewhere.
package schedules

import "context"

type Repository interface {
	DeleteForAccount(ctx context.Context, accountID string) error
}
