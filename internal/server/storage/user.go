package storage

import (
	"context"

	"github.com/iudanet/cropscan/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email is already taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email (exact match, case-sensitive)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
