package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/services"
	"github.com/omar4917/real-estate-project/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginReq
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "body", "Invalid JSON body.")
	}
	email, ok := validate.Email(req.Email)
	if !ok || req.Password == "" || len(req.Password) > 128 {
		log.Security(c, "auth.login.fail", map[string]any{"email": req.Email, "reason": "bad_format"})
		return detail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	tok, u, err := h.Auth.Login(c.UserContext(), email, req.Password)
	if err != nil {
		if err != services.ErrBadCreds {
			log.Error(c, "auth.login.error", err, nil)
			return detail(c, fiber.StatusInternalServerError, genericFailure)
		}
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return detail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	c.Locals("user_id", u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.JSON(fiber.Map{
		"access":     tok,
		"token_type": "Bearer",
		"expires_in": int(h.Auth.Tokens.TTL().Seconds()),
	})
}
