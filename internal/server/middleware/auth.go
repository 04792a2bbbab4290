package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/pkg/api"
)

// TokenVerifier проверяет access токен и требуемые роли
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string, requiredRoles ...string) (*jwt.AccessPayload, error)
}

// AuthMiddleware создает middleware для проверки access токена
// Все roles должны присутствовать в токене, superuser проходит без проверки ролей
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Ожидаем формат: "Bearer <token>"
			token, ok := handlers.BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "missing or malformed Authorization header")
				writeError(w, "missing token", http.StatusUnauthorized)
				return
			}

			payload, err := verifier.VerifyAccessToken(ctx, token, roles...)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrInsufficientRole):
					logger.WarnContext(ctx, "insufficient role", slog.Any("error", err))
					writeError(w, "insufficient role", http.StatusForbidden)
				case errors.Is(err, auth.ErrInvalidToken):
					logger.WarnContext(ctx, "invalid access token", slog.Any("error", err))
					writeError(w, "invalid token", http.StatusUnauthorized)
				default:
					logger.ErrorContext(ctx, "failed to verify access token", slog.Any("error", err))
					writeError(w, "internal server error", http.StatusInternalServerError)
				}
				return
			}

			logger.DebugContext(ctx, "user authenticated",
				slog.String("login", payload.Sub),
				slog.String("device_id", payload.DeviceID))

			next.ServeHTTP(w, r.WithContext(handlers.WithAccessToken(ctx, token, payload)))
		})
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
