package storage

import (
	"context"
	"time"
)

// SessionStorage хранит сессию текущего пользователя CLI
type SessionStorage interface {
	// SaveSession replaces the current session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns ErrSessionNotFound if nobody is logged in
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the session (logout)
	DeleteSession(ctx context.Context) error
}

// Session данные входа, полученные от сервера
type Session struct {
	Email     string `json:"email"`
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}

// Expired reports whether the token is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(time.Unix(s.ExpiresAt, 0))
}
