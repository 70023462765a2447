package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/cropscan/internal/server/service"
	"github.com/iudanet/cropscan/pkg/api"
)

// maxAuthBodySize ограничение на JSON тело запросов авторизации
const maxAuthBodySize = 1 << 20

// IdentityService регистрирует и аутентифицирует пользователей
type IdentityService interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger   *slog.Logger
	identity IdentityService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, identity IdentityService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		identity: identity,
	}
}

// Register обрабатывает POST /auth/register
// Регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		SendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, err := h.identity.Register(ctx, req.Email, req.Password)
	if err != nil {
		sendAppError(ctx, h.logger, w, err)
		return
	}

	resp := api.RegisterResponse{
		Message: "User created successfully",
		UserID:  userID,
	}

	SendJSON(h.logger, w, resp, http.StatusCreated)
}

// Login обрабатывает POST /auth/login
// Аутентификация пользователя
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		SendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		sendAppError(ctx, h.logger, w, err)
		return
	}

	resp := api.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User: api.UserSummary{
			ID:    result.User.ID,
			Email: result.User.Email,
		},
	}

	SendJSON(h.logger, w, resp, http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}
