package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/jwt"
)

// Authenticator проверяет JWT токен и возвращает его claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error)
}
