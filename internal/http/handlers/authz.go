package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/omar4917/real-estate-project/internal/domain"
	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/services"
)

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the bearer token. On failure it has already written
// the 401 response and returns nil.
func authenticate(c *fiber.Ctx, auth *services.AuthService) (*domain.User, error) {
	tok := bearer(c)
	if tok == "" {
		applog.Security(c, "access.denied.auth", map[string]any{"reason": "missing_token"})
		return nil, detail(c, fiber.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	u, err := auth.CurrentUser(c.UserContext(), tok)
	if err != nil || u == nil {
		applog.Security(c, "access.denied.auth", map[string]any{"reason": "invalid_token"})
		return nil, detail(c, fiber.StatusUnauthorized, "Invalid or expired token.")
	}
	c.Locals("user", u)
	c.Locals("user_id", u.ID)
	return u, nil
}

// RequireUser enforces a valid bearer token and attaches the user.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := authenticate(c, auth)
		if u == nil {
			return err
		}
		return c.Next()
	}
}

// RequireAdmin is RequireUser plus the ADMIN role.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := authenticate(c, auth)
		if u == nil {
			return err
		}
		if u.Role != domain.RoleAdmin {
			applog.Security(c, "access.denied.admin", nil)
			return detail(c, fiber.StatusForbidden, "Access denied.")
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}
