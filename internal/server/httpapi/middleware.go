package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/server/auth"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type ctxKey struct{}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*auth.Claims)
	return c, ok
}

// requestLogger logs one line per request through the service logger.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		a.log.Info(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authenticate requires a valid bearer access token.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || token == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, Error("missing bearer token"))
			return
		}

		claims, err := auth.ParseToken(token, a.jwtSecret)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, Error("invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

// requireRole lets through only tokens carrying role.
func requireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.Role != role {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, Error("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Per-IP limits for the unauthenticated endpoints.
func limitLogin() func(http.Handler) http.Handler {
	return httprate.LimitByIP(10, 5*time.Minute)
}

func limitRegister() func(http.Handler) http.Handler {
	return httprate.LimitByIP(5, time.Hour)
}

func limitForgot() func(http.Handler) http.Handler {
	return httprate.LimitByIP(5, 15*time.Minute)
}

func limitReset() func(http.Handler) http.Handler {
	return httprate.LimitByIP(10, 15*time.Minute)
}
