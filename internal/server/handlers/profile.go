package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/validation"
	"github.com/iudanet/gophauth/pkg/api"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// UserService операции с аккаунтом текущего пользователя
type UserService interface {
	Profile(ctx context.Context, login string) (*auth.Profile, error)
	UpdateProfile(ctx context.Context, login string, req auth.UpdateProfileRequest) (*auth.Profile, error)
	History(ctx context.Context, login string, offset, limit int) ([]*models.UserHistory, error)
	DeleteAccount(ctx context.Context, accessToken string) error
}

// ProfileHandler обрабатывает запросы профиля. Все методы требуют AuthMiddleware
type ProfileHandler struct {
	responder
	users    UserService
	validate *validator.Validate
}

// NewProfileHandler создает новый handler профиля
func NewProfileHandler(logger *slog.Logger, users UserService) *ProfileHandler {
	return &ProfileHandler{
		responder: responder{logger: logger},
		users:     users,
		validate:  validation.New(),
	}
}

// Get обрабатывает GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, ok := GetAccessPayload(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.users.Profile(ctx, payload.Sub)
	if err != nil {
		h.sendServiceError(ctx, w, "profile", err)
		return
	}

	h.sendJSON(w, profileResponse(profile), http.StatusOK)
}

// Update обрабатывает PATCH /api/v1/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, ok := GetAccessPayload(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode profile update", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, validation.Message(err), http.StatusBadRequest)
		return
	}

	profile, err := h.users.UpdateProfile(ctx, payload.Sub, auth.UpdateProfileRequest{
		Login:     req.Login,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.sendServiceError(ctx, w, "update profile", err)
		return
	}

	h.sendJSON(w, profileResponse(profile), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/profile
// Удаляет аккаунт и закрывает все сессии
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := GetAccessToken(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.users.DeleteAccount(ctx, token); err != nil {
		h.sendServiceError(ctx, w, "delete account", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History обрабатывает GET /api/v1/profile/history?offset=&limit=
func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, ok := GetAccessPayload(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		h.sendError(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		h.sendError(w, "limit must be between 1 and 100", http.StatusBadRequest)
		return
	}

	entries, err := h.users.History(ctx, payload.Sub, offset, limit)
	if err != nil {
		h.sendServiceError(ctx, w, "history", err)
		return
	}

	resp := api.HistoryResponse{
		Entries: make([]api.HistoryEntry, 0, len(entries)),
		Offset:  offset,
		Limit:   limit,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, api.HistoryEntry{
			CreatedAt: e.CreatedAt,
			DeviceID:  e.DeviceID,
			Action:    e.Action,
			IP:        e.IP,
		})
	}

	h.sendJSON(w, resp, http.StatusOK)
}

func profileResponse(profile *auth.Profile) api.ProfileResponse {
	resp := api.ProfileResponse{
		CreatedAt: profile.User.CreatedAt,
		ID:        profile.User.ID,
		Login:     profile.User.Login,
		Email:     profile.User.Email,
		FirstName: profile.User.FirstName,
		LastName:  profile.User.LastName,
		Roles:     profile.Roles,
		Links:     make([]api.OAuthLinkResponse, 0, len(profile.Links)),
		Devices:   make([]api.DeviceResponse, 0, len(profile.Devices)),
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	for _, link := range profile.Links {
		resp.Links = append(resp.Links, api.OAuthLinkResponse{
			CreatedAt:      link.CreatedAt,
			Provider:       link.Provider,
			ProviderUserID: link.ProviderUserID,
		})
	}
	for _, d := range profile.Devices {
		resp.Devices = append(resp.Devices, api.DeviceResponse{
			CreatedAt: d.CreatedAt,
			ID:        d.ID,
			UserAgent: d.UserAgent,
		})
	}
	return resp
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
