package api

import "time"

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`    // email пользователя
	Password string `json:"password"` // пароль в открытом виде (только по TLS)
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	Message string `json:"message"` // сообщение об успешной регистрации
	UserID  string `json:"userId"`  // UUID пользователя
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary публичные данные пользователя
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse представляет ответ с сессионным токеном
type LoginResponse struct {
	ExpiresAt time.Time   `json:"expiresAt"` // момент истечения токена
	Token     string      `json:"token"`     // JWT, передается как Bearer
	User      UserSummary `json:"user"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Environment string    `json:"environment,omitempty"`
	Version     string    `json:"version,omitempty"`
}
