// Package service holds the business operations behind the HTTP surface.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/cropscan/internal/apperr"
	"github.com/iudanet/cropscan/internal/crypto"
	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/storage"
	"github.com/iudanet/cropscan/internal/validation"
)

// Public messages
const (
	MsgUserExists         = "User already exists"
	MsgInvalidCredentials = "Invalid credentials"
)

// TokenIssuer выпускает сессионный токен
type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

// LoginResult - результат успешного входа
type LoginResult struct {
	ExpiresAt time.Time
	Token     string
	User      models.Identity
}

// IdentityService регистрирует и аутентифицирует пользователей
type IdentityService struct {
	logger *slog.Logger
	users  storage.UserStorage
	tokens TokenIssuer
	newID  func() string
	now    func() time.Time
}

// NewIdentityService creates a new identity service
func NewIdentityService(logger *slog.Logger, users storage.UserStorage, tokens TokenIssuer) *IdentityService {
	return &IdentityService{
		logger: logger,
		users:  users,
		tokens: tokens,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Register создает пользователя и возвращает его ID
func (s *IdentityService) Register(ctx context.Context, email, password string) (string, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return "", apperr.Wrap(apperr.ErrValidation, err.Error(), err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", apperr.Wrap(apperr.ErrValidation, err.Error(), err)
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.WarnContext(ctx, "Registration for existing email", slog.String("email", email))
		return "", apperr.New(apperr.ErrConflict, MsgUserExists)
	case !errors.Is(err, storage.ErrUserNotFound):
		s.logger.ErrorContext(ctx, "Failed to check existing user", slog.Any("error", err))
		return "", apperr.Wrap(apperr.ErrPersistence, "failed to register user", err)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return "", err
	}

	user := &models.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// гонка двух регистраций с одним email
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return "", apperr.New(apperr.ErrConflict, MsgUserExists)
		}
		s.logger.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		return "", apperr.Wrap(apperr.ErrPersistence, "failed to register user", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user.ID, nil
}

// Login проверяет пароль и выпускает токен
// Неизвестный email и неверный пароль неразличимы для вызывающего
func (s *IdentityService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err.Error(), err)
	}
	if password == "" {
		return nil, apperr.New(apperr.ErrValidation, "password cannot be empty")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			crypto.EqualizeTiming(password)
			s.logger.WarnContext(ctx, "Login for unknown email", slog.String("email", email))
			return nil, apperr.New(apperr.ErrUnauthorized, MsgInvalidCredentials)
		}
		s.logger.ErrorContext(ctx, "Failed to get user", slog.Any("error", err))
		return nil, apperr.Wrap(apperr.ErrPersistence, "failed to login", err)
	}

	if err := crypto.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.ErrorContext(ctx, "Failed to verify password", slog.Any("error", err))
		}
		s.logger.WarnContext(ctx, "Invalid password", slog.String("user_id", user.ID))
		return nil, apperr.New(apperr.ErrUnauthorized, MsgInvalidCredentials)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to issue token", slog.Any("error", err))
		return nil, err
	}

	s.logger.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Identity(),
	}, nil
}
