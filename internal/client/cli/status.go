package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/cropscan/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	session, err := c.store.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Status: Not authenticated")
			c.io.Println()
			c.io.Println("Run 'cropscan login' to authenticate.")
			return nil
		}
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	expiresAt := time.Unix(session.ExpiresAt, 0)

	if session.Expired(c.now()) {
		c.io.Println("Status: Session expired")
		c.io.Printf("Email: %s\n", session.Email)
		c.io.Println("⚠️  Token has expired. Please login again.")
		return nil
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("Email: %s\n", session.Email)
	c.io.Printf("User ID: %s\n", session.UserID)
	c.io.Printf("Token expires: %s\n", expiresAt.Local().Format(time.RFC3339))
	c.io.Printf("Time remaining: %s\n", expiresAt.Sub(c.now()).Round(time.Second))

	scans, err := c.store.ListScans(ctx, session.UserID)
	if err != nil {
		// Не прерываем выполнение
		c.io.Printf("\nWarning: Failed to read scan history: %v\n", err)
		return nil
	}
	c.io.Printf("Local scans: %d\n", len(scans))

	return nil
}
