package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/storage"
)

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "postgres.CreateUser"

	query := fmt.Sprintf(
		"INSERT INTO %s (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4);",
		usersTable,
	)

	_, err := s.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "postgres.GetUserByEmail"

	query := fmt.Sprintf("SELECT id, email, password_hash, created_at FROM %s WHERE email = $1;", usersTable)

	user, err := s.scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}
