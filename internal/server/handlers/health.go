package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/cropscan/pkg/api"
)

// pingTimeout ограничение на проверку базы данных
const pingTimeout = 2 * time.Second

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger      *slog.Logger
	db          Pinger
	now         func() time.Time
	environment string
	version     string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, db Pinger, environment, version string) *HealthHandler {
	return &HealthHandler{
		logger:      logger,
		db:          db,
		environment: environment,
		version:     version,
		now:         time.Now,
	}
}

// Health обрабатывает GET /health
// Health check endpoint для мониторинга
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:      "ok",
		Environment: h.environment,
		Version:     h.version,
		Timestamp:   h.now().UTC(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "database ping failed", slog.Any("error", err))
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	SendJSON(h.logger, w, resp, status)
}
