package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/iudanet/gophauth/pkg/api"
)

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	responder
	deps    map[string]Pinger
	version string
}

// NewHealthHandler создает новый handler для health check
// deps проверяются при каждом запросе: база данных, кэш
func NewHealthHandler(logger *slog.Logger, version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		responder: responder{logger: logger},
		deps:      deps,
		version:   version,
	}
}

// Health обрабатывает GET /api/v1/health
// Health check endpoint для мониторинга
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	status := http.StatusOK

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check failed",
				slog.String("dependency", name),
				slog.Any("error", err))
			resp.Failed = append(resp.Failed, name)
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	sort.Strings(resp.Failed)

	h.sendJSON(w, resp, status)
}
