package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"formsapi/internal/auth"
	"formsapi/internal/policy"
)

// IdentityLocalKey is the key under which Authenticate stores the caller identity.
const IdentityLocalKey = "identity"

// Authenticate resolves a Bearer token into a policy.Identity. Requests
// without an Authorization header pass through as anonymous; a present but
// invalid token is rejected with 401.
func Authenticate(issuer *auth.Issuer, onInvalid fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			c.Locals(IdentityLocalKey, policy.Identity{})
			return c.Next()
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return onInvalid(c)
		}
		claims, err := issuer.Parse(strings.TrimSpace(token))
		if err != nil {
			return onInvalid(c)
		}
		c.Locals(IdentityLocalKey, claims.Identity())
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *fiber.Ctx) (policy.Identity, bool) {
	id, ok := c.Locals(IdentityLocalKey).(policy.Identity)
	return id, ok
}
