package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pocketbank/pocketbank/internal/identity"
)

// TokenVerifier resolves a bearer access token to its user.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, token string) (identity.User, error)
}

// JWTAuth returns a middleware that validates access tokens and exposes the
// caller as the "user_id" local.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		user, err := verifier.VerifyAccess(c.UserContext(), tokenStr)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", user.ID)
		c.Locals("token_version", user.TokenVersion)
		return c.Next()
	}
}
