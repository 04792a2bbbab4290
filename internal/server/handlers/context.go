package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/iudanet/gophauth/internal/server/jwt"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// AccessPayloadKey ключ для хранения payload access токена в контексте
	AccessPayloadKey contextKey = "access_payload"
	// AccessTokenKey ключ для хранения исходного access токена в контексте
	AccessTokenKey contextKey = "access_token"
)

// WithAccessToken сохраняет проверенный токен и его payload в контексте
func WithAccessToken(ctx context.Context, token string, payload *jwt.AccessPayload) context.Context {
	ctx = context.WithValue(ctx, AccessTokenKey, token)
	return context.WithValue(ctx, AccessPayloadKey, payload)
}

// GetAccessPayload извлекает payload access токена из контекста запроса
func GetAccessPayload(ctx context.Context) (*jwt.AccessPayload, bool) {
	payload, ok := ctx.Value(AccessPayloadKey).(*jwt.AccessPayload)
	return payload, ok && payload != nil
}

// GetAccessToken извлекает access токен из контекста запроса
func GetAccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(AccessTokenKey).(string)
	return token, ok && token != ""
}

// BearerToken извлекает токен из заголовка "Authorization: Bearer <token>"
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// clientIP возвращает адрес клиента без порта
// RemoteAddr уже переписан chi middleware.RealIP, если сервер за прокси
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
