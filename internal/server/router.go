// Package server собирает HTTP маршруты сервера авторизации
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"

	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/middleware"
)

const requestTimeout = 30 * time.Second

// Deps зависимости HTTP слоя
type Deps struct {
	Logger  *slog.Logger
	Auth    *auth.Service
	OAuth   *auth.OAuthService
	Health  map[string]handlers.Pinger
	Version string
}

// NewRouter создает chi router со всеми маршрутами /api/v1
func NewRouter(deps Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.Logger, deps.Auth)
	oauthHandler := handlers.NewOAuthHandler(deps.Logger, deps.OAuth, deps.Auth)
	profileHandler := handlers.NewProfileHandler(deps.Logger, deps.Auth)
	healthHandler := handlers.NewHealthHandler(deps.Logger, deps.Version, deps.Health)

	requireAuth := middleware.AuthMiddleware(deps.Logger, deps.Auth)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.TracingMiddleware(otel.GetTracerProvider(), otel.GetTextMapPropagator()))
	r.Use(middleware.LoggingMiddleware(deps.Logger, "/api/v1/health"))
	r.Use(middleware.RecoveryMiddleware(deps.Logger))
	r.Use(chimw.Timeout(requestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			// Logout проверяет токен сам: ему нужен и отзыв, и устройство из payload
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/page/{provider}", oauthHandler.Page)
			r.Get("/code/{provider}", oauthHandler.Code)
			r.With(requireAuth).Post("/unlink/{provider}", oauthHandler.Unlink)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", profileHandler.Get)
			r.Patch("/", profileHandler.Update)
			r.Delete("/", profileHandler.Delete)
			r.Get("/history", profileHandler.History)
		})
	})

	return r
}
