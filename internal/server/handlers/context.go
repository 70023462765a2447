package handlers

import (
	"context"

	"github.com/iudanet/cropscan/internal/models"
)

// contextKey тип для ключей контекста
type contextKey string

// identityKey ключ для хранения идентичности вызывающего
const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying the authenticated caller
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext извлекает идентичность из контекста запроса
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok && identity.ID != ""
}
