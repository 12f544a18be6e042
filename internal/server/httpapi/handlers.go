package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

// decode reads the JSON body into dst and validates it. On failure it
// writes the 400 response itself and returns false.
func (a *API) decode(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		a.log.Warn(r.Context(), "failed to decode request body", "op", op, "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error("failed to decode request"))
		return false
	}

	if err := a.validate.Struct(dst); err != nil {
		render.Status(r, http.StatusBadRequest)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.JSON(w, r, ValidationError(verrs))
		} else {
			render.JSON(w, r, Error("invalid request"))
		}
		return false
	}

	return true
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type RegisterResponse struct {
	Response
	UserID string `json:"user_id"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.Register"

	var req RegisterRequest
	if !a.decode(w, r, op, &req) {
		return
	}

	id, err := a.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{Response: OK(), UserID: id})
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Response
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	UserID      string      `json:"user_id"`
	Username    string      `json:"username"`
	Role        models.Role `json:"role"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.Login"

	var req LoginRequest
	if !a.decode(w, r, op, &req) {
		return
	}

	session, err := a.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.JSON(w, r, LoginResponse{
		Response:    OK(),
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
		UserID:      session.UserID,
		Username:    session.Username,
		Role:        session.Role,
	})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type ForgotPasswordResponse struct {
	Response
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// resetAckMessage is identical for known and unknown emails.
const resetAckMessage = "If the email is registered, reset instructions have been sent."

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.ForgotPassword"

	var req ForgotPasswordRequest
	if !a.decode(w, r, op, &req) {
		return
	}

	ack, err := a.resets.RequestReset(r.Context(), req.Email)
	if err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.JSON(w, r, ForgotPasswordResponse{Response: OK(), Message: resetAckMessage, ResetToken: ack.Token})
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,max=254"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.ResetPassword"

	var req ResetPasswordRequest
	if !a.decode(w, r, op, &req) {
		return
	}

	if err := a.resets.CompleteReset(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.JSON(w, r, OK())
}

type SendMessageRequest struct {
	Receiver string `json:"receiver" validate:"required"`
	Content  string `json:"content" validate:"required,max=4096"`
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.SendMessage"

	claims, _ := ClaimsFromContext(r.Context())

	var req SendMessageRequest
	if !a.decode(w, r, op, &req) {
		return
	}

	if err := a.messages.SendMessage(r.Context(), claims.UserID, req.Receiver, req.Content); err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, OK())
}

func (a *API) handleInbox(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.Inbox"

	claims, _ := ClaimsFromContext(r.Context())

	inbox, err := a.messages.ReadInbox(r.Context(), claims.UserID)
	if err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.JSON(w, r, inbox)
}

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := a.admin.ListAccounts(r.Context())
	if err != nil {
		a.writeError(w, r, "httpapi.ListAccounts", err)
		return
	}
	render.JSON(w, r, list)
}

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.admin.ListAuditLogs(r.Context())
	if err != nil {
		a.writeError(w, r, "httpapi.ListAuditLogs", err)
		return
	}
	render.JSON(w, r, logs)
}

// runAdmin applies fn to the {id} path parameter on behalf of the caller.
func (a *API) runAdmin(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, accountID string) error) {
	claims, _ := ClaimsFromContext(r.Context())

	if err := fn(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, op, err)
		return
	}

	render.JSON(w, r, OK())
}

func (a *API) handleLock(w http.ResponseWriter, r *http.Request) {
	a.runAdmin(w, r, "httpapi.Lock", a.admin.Lock)
}

func (a *API) handleUnlock(w http.ResponseWriter, r *http.Request) {
	a.runAdmin(w, r, "httpapi.Unlock", a.admin.Unlock)
}

func (a *API) handlePromote(w http.ResponseWriter, r *http.Request) {
	a.runAdmin(w, r, "httpapi.Promote", a.admin.Promote)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	a.runAdmin(w, r, "httpapi.Delete", a.admin.Delete)
}
