package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
)

// LockedResponse tells the caller until when the account stays locked.
type LockedResponse struct {
	Response
	LockedUntil time.Time `json:"locked_until"`
}

// writeError maps a service error onto an HTTP status. Unknown errors
// become 500 without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var locked *common.LockedError

	switch {
	case errors.As(err, &locked):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, LockedResponse{Response: Error("account is locked"), LockedUntil: locked.Until})
		return
	case errors.Is(err, common.ErrValidation):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error(err.Error()))
		return
	case errors.Is(err, common.ErrInvalidCredentials):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, Error("invalid credentials"))
		return
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error("invalid or expired token"))
		return
	case errors.Is(err, common.ErrUsernameTaken):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, Error("username already taken"))
		return
	case errors.Is(err, common.ErrRecipientKeyMissing):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error("recipient not found or has no key"))
		return
	case errors.Is(err, common.ErrOwnKeyMissing):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error("you have no key pair"))
		return
	case errors.Is(err, common.ErrorNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error("not found"))
		return
	}

	a.log.Error(r.Context(), "request failed", "op", op, "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, Error("internal error"))
}
