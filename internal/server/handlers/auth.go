package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/validation"
	"github.com/iudanet/gophauth/pkg/api"
)

// AuthService операции входа, обновления токенов и выхода
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (jwt.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (jwt.Pair, error)
	Logout(ctx context.Context, accessToken string, everywhere bool) error
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	responder
	auth     AuthService
	validate *validator.Validate
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, authService AuthService) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger},
		auth:      authService,
		validate:  validation.New(),
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового пользователя по логину и паролю
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request", slog.String("login", req.Login), slog.Any("error", err))
		h.sendError(w, validation.Message(err), http.StatusBadRequest)
		return
	}

	user, err := h.auth.Register(ctx, auth.RegisterRequest{
		Login:     req.Login,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.sendServiceError(ctx, w, "register", err)
		return
	}

	resp := api.RegisterResponse{
		UserID:  user.ID,
		Message: "User registered successfully",
	}

	h.sendJSON(w, resp, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация пользователя, устройство определяется по User-Agent
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, validation.Message(err), http.StatusBadRequest)
		return
	}

	pair, err := h.auth.Login(ctx, auth.LoginRequest{
		Login:     req.Login,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	if err != nil {
		h.sendServiceError(ctx, w, "login", err)
		return
	}

	h.sendJSON(w, tokenResponse(pair), http.StatusOK)
}

// Refresh обрабатывает POST /api/v1/auth/refresh
// Обмен refresh токена на новую пару. Токен берется из тела, иначе из Authorization
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		if token, ok := BearerToken(r); ok {
			req.RefreshToken = token
		}
	}
	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, "refresh token is required", http.StatusUnauthorized)
		return
	}

	pair, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.sendServiceError(ctx, w, "refresh", err)
		return
	}

	h.sendJSON(w, tokenResponse(pair), http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Выход с текущего устройства или со всех, если everywhere=true
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accessToken, ok := BearerToken(r)
	if !ok {
		h.sendError(w, "Authorization header is required", http.StatusUnauthorized)
		return
	}

	var req api.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.auth.Logout(ctx, accessToken, req.Everywhere); err != nil {
		h.sendServiceError(ctx, w, "logout", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func tokenResponse(pair jwt.Pair) api.TokenResponse {
	return api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(time.Until(pair.AccessExpiresAt).Round(time.Second).Seconds()),
	}
}
