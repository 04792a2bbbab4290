package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/pkg/api"
)

// responder общая часть всех handlers: JSON ответы и маппинг ошибок
type responder struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (h *responder) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}

// sendServiceError переводит ошибку сервиса в HTTP статус
// Клиент получает только текст доменной ошибки, цепочка причин остается в логе
func (h *responder) sendServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, sentinel := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
		if status == http.StatusBadGateway {
			h.sendError(w, "identity provider is unavailable", status)
			return
		}
		h.sendError(w, "internal server error", status)
		return
	}

	h.logger.WarnContext(ctx, op+" rejected", slog.Any("error", err))
	h.sendError(w, sentinel.Error(), status)
}

// errorStatuses порядок важен: первое совпадение по errors.Is определяет ответ
var errorStatuses = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrInsufficientRole, http.StatusForbidden},
	{auth.ErrReservedLogin, http.StatusForbidden},
	{auth.ErrTokenNotFound, http.StatusNotFound},
	{auth.ErrDeviceNotExists, http.StatusNotFound},
	{auth.ErrOAuthAccountNotExists, http.StatusNotFound},
	{auth.ErrUnknownProvider, http.StatusNotFound},
	{auth.ErrAlreadyLinkedElsewhere, http.StatusConflict},
	{auth.ErrUserExists, http.StatusConflict},
	{auth.ErrInvalidState, http.StatusBadRequest},
	{auth.ErrUpstreamProvider, http.StatusBadGateway},
}

// classifyError возвращает HTTP статус и доменную ошибку, которой он соответствует
// Для неизвестных ошибок sentinel равен nil
func classifyError(err error) (int, error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err
		}
	}
	return http.StatusInternalServerError, nil
}

// StatusForError возвращает HTTP статус для ошибки сервиса авторизации
func StatusForError(err error) int {
	status, _ := classifyError(err)
	return status
}
