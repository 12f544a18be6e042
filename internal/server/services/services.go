// Package services contains server-side business logic: account
// registration and login behind the credential guard, password reset,
// hybrid-encrypted messaging and administration.
//
// Services are constructed with the connection pool, a RepositoryManager
// and the server config. They compose repositories inside dbx.WithTx when
// several writes must commit together.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/logging"
)

// internalError logs err under op and hides it behind common.ErrorInternal.
func internalError(ctx context.Context, log logging.Logger, op string, err error) error {
	log.Error(ctx, "internal error", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, common.ErrorInternal)
}

// passThrough returns err unchanged when it matches one of the domain
// sentinels, and common.ErrorInternal otherwise.
func passThrough(ctx context.Context, log logging.Logger, op string, err error, keep ...error) error {
	for _, k := range keep {
		if errors.Is(err, k) {
			return err
		}
	}
	return internalError(ctx, log, op, err)
}
