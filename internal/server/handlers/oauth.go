package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/oauth"
	"github.com/iudanet/gophauth/pkg/api"
)

// OAuthService операции входа и привязки через внешних провайдеров
type OAuthService interface {
	RedirectURI(provider string) string
	AuthorizationURL(ctx context.Context, provider, state string) (string, error)
	ResolveVerifier(ctx context.Context, state, callbackURL string) (string, error)
	Login(ctx context.Context, provider, code, verifier, userAgent, ip string) (jwt.Pair, error)
	Link(ctx context.Context, provider, code, verifier, ip string, payload *jwt.AccessPayload) (*oauth.Profile, error)
	Unlink(ctx context.Context, provider, login string) error
}

// TokenVerifier проверяет access токен и требуемые роли
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string, requiredRoles ...string) (*jwt.AccessPayload, error)
}

// OAuthHandler обрабатывает запросы OAuth провайдеров
type OAuthHandler struct {
	responder
	oauth    OAuthService
	verifier TokenVerifier
}

// NewOAuthHandler создает новый handler для OAuth
func NewOAuthHandler(logger *slog.Logger, oauthService OAuthService, verifier TokenVerifier) *OAuthHandler {
	return &OAuthHandler{
		responder: responder{logger: logger},
		oauth:     oauthService,
		verifier:  verifier,
	}
}

// Page обрабатывает GET /api/v1/oauth/page/{provider}
// Перенаправляет пользователя на страницу авторизации провайдера
func (h *OAuthHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	target, err := h.oauth.AuthorizationURL(ctx, provider, r.URL.Query().Get("state"))
	if err != nil {
		h.sendServiceError(ctx, w, "oauth page", err)
		return
	}

	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// Code обрабатывает GET /api/v1/oauth/code/{provider}
// Callback провайдера: с Authorization заголовком привязывает аккаунт, без него выполняет вход
func (h *OAuthHandler) Code(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		h.logger.WarnContext(ctx, "provider returned error",
			slog.String("provider", provider),
			slog.String("error", errCode))
		h.sendError(w, "authorization was denied: "+errCode, http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.sendError(w, "code is required", http.StatusBadRequest)
		return
	}

	verifier, err := h.oauth.ResolveVerifier(ctx, query.Get("state"), h.oauth.RedirectURI(provider))
	if err != nil {
		h.sendServiceError(ctx, w, "oauth callback", err)
		return
	}

	accessToken, linking := BearerToken(r)
	if !linking {
		pair, err := h.oauth.Login(ctx, provider, code, verifier, r.UserAgent(), clientIP(r))
		if err != nil {
			h.sendServiceError(ctx, w, "oauth login", err)
			return
		}
		h.sendJSON(w, tokenResponse(pair), http.StatusOK)
		return
	}

	payload, err := h.verifier.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		h.sendServiceError(ctx, w, "oauth link", err)
		return
	}

	profile, err := h.oauth.Link(ctx, provider, code, verifier, clientIP(r), payload)
	if err != nil {
		h.sendServiceError(ctx, w, "oauth link", err)
		return
	}

	h.sendJSON(w, api.OAuthProfileResponse{
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		Email:          profile.Email,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
	}, http.StatusOK)
}

// Unlink обрабатывает POST /api/v1/oauth/unlink/{provider}
// Требует AuthMiddleware
func (h *OAuthHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, ok := GetAccessPayload(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.oauth.Unlink(ctx, chi.URLParam(r, "provider"), payload.Sub); err != nil {
		h.sendServiceError(ctx, w, "oauth unlink", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
