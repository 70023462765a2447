package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost cost factor bcrypt (не ниже 10 раундов)
const PasswordCost = 10

// ErrPasswordMismatch возвращается, если пароль не соответствует хешу
var ErrPasswordMismatch = errors.New("password does not match")

// dummyHash используется для сравнения, когда пользователь не найден,
// чтобы время ответа не зависело от существования email
var dummyHash = mustHash("cropscan-dummy-password")

// HashPassword хеширует пароль с солью через bcrypt
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword проверяет, соответствует ли пароль сохраненному хешу
// Возвращает ErrPasswordMismatch при неверном пароле
func VerifyPassword(password, hash string) error {
	if hash == "" {
		return fmt.Errorf("password hash cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to compare password: %w", err)
	}

	return nil
}

// EqualizeTiming выполняет сравнение с фиктивным хешем
func EqualizeTiming(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}
