// Package httpapi exposes the services over HTTP with chi. Handlers decode
// JSON with render, validate requests with validator and translate service
// errors into status codes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/services"
)

type Accounts interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (*services.Session, error)
}

type Resets interface {
	RequestReset(ctx context.Context, email string) (*services.ResetAck, error)
	CompleteReset(ctx context.Context, email, token, newPassword string) error
}

type Messages interface {
	SendMessage(ctx context.Context, senderID, receiverUsername, plaintext string) error
	ReadInbox(ctx context.Context, receiverID string) ([]models.InboxEntry, error)
}

type Admin interface {
	Lock(ctx context.Context, actorID, accountID string) error
	Unlock(ctx context.Context, actorID, accountID string) error
	Delete(ctx context.Context, actorID, accountID string) error
	Promote(ctx context.Context, actorID, accountID string) error
	ListAccounts(ctx context.Context) ([]models.AccountSummary, error)
	ListAuditLogs(ctx context.Context) ([]models.AuditLogView, error)
}

// API holds the handler dependencies.
type API struct {
	accounts Accounts
	resets   Resets
	messages Messages
	admin    Admin

	log       logging.Logger
	validate  *validator.Validate
	jwtSecret []byte
}

func New(log logging.Logger, jwtSecret []byte, accounts Accounts, resets Resets, messages Messages, admin Admin) *API {
	return &API{
		accounts:  accounts,
		resets:    resets,
		messages:  messages,
		admin:     admin,
		log:       log,
		validate:  validator.New(),
		jwtSecret: jwtSecret,
	}
}

// Routes builds the router. metrics may be nil.
func (a *API) Routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limitRegister()).Post("/register", a.handleRegister)
		r.With(limitLogin()).Post("/login", a.handleLogin)
		r.With(limitForgot()).Post("/forgot-password", a.handleForgotPassword)
		r.With(limitReset()).Post("/reset-password", a.handleResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/api/notifications", a.handleSendMessage)
		r.Get("/api/notifications", a.handleInbox)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireRole(models.RoleAdmin))

			r.Get("/users", a.handleListAccounts)
			r.Get("/audit-logs", a.handleListAuditLogs)
			r.Post("/users/{id}/lock", a.handleLock)
			r.Post("/users/{id}/unlock", a.handleUnlock)
			r.Post("/users/{id}/promote", a.handlePromote)
			r.Delete("/users/{id}", a.handleDelete)
		})
	})

	return r
}
