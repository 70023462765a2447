package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/handlers"
	"github.com/iudanet/cropscan/internal/server/jwt"
)

// Public messages
const (
	MsgAuthRequired = "authentication required"
	MsgInvalidToken = "invalid token"
)

// TokenVerifier проверяет сессионный токен без обращения к хранилищу
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.DebugContext(ctx, "Missing Authorization header", slog.String("path", r.URL.Path))
				handlers.SendError(logger, w, MsgAuthRequired, http.StatusUnauthorized)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				logger.WarnContext(ctx, "Invalid Authorization header format")
				handlers.SendError(logger, w, MsgInvalidToken, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				logger.WarnContext(ctx, "Invalid access token", slog.Any("error", err))
				handlers.SendError(logger, w, MsgInvalidToken, http.StatusUnauthorized)
				return
			}

			identity := models.Identity{ID: claims.UserID, Email: claims.Email}
			logger.DebugContext(ctx, "User authenticated", slog.String("user_id", identity.ID))

			next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(ctx, identity)))
		})
	}
}
