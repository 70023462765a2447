package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/cropscan/internal/apperr"
	"github.com/iudanet/cropscan/pkg/api"
)

// SendJSON отправляет JSON ответ
func SendJSON(logger *slog.Logger, w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError отправляет JSON ответ с ошибкой
func SendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	SendJSON(logger, w, resp, statusCode)
}

// sendAppError переводит ошибку сервиса в HTTP ответ
// Детали 5xx остаются в логе
func sendAppError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed",
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	SendError(logger, w, apperr.PublicMessage(err), status)
}
