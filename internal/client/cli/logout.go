package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/cropscan/internal/client/storage"
)

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	// Токен живет до истечения срока, удаляем только локальную копию
	if err := c.store.DeleteSession(ctx); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("You are not logged in.")
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")

	return nil
}
