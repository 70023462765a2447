package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/cropscan/internal/client/storage"
	"github.com/iudanet/cropscan/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	c.io.Println()
	c.io.Println("Authenticating...")

	resp, err := c.apiClient.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	session := &storage.Session{
		Email:     resp.User.Email,
		UserID:    resp.User.ID,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt.Unix(),
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Email: %s\n", session.Email)
	c.io.Printf("Session expires: %s\n", resp.ExpiresAt.Local().Format(time.RFC3339))

	return nil
}
