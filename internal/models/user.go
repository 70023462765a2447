package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время регистрации
	ID           string    `json:"id"`         // UUID пользователя
	Email        string    `json:"email"`      // уникальный email (регистр сохраняется)
	PasswordHash string    `json:"-"`          // bcrypt хеш пароля
}

// Identity is the authenticated caller decoded from a session token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Identity returns the public summary of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}
