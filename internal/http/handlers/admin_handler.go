package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/services"
)

type AdminHandler struct {
	Payments *services.PaymentService
}

// GET /api/admin/payments
func (h *AdminHandler) ListPayments(c *fiber.Ctx) error {
	items, err := h.Payments.ListLatest(c.UserContext(), 100)
	if err != nil {
		return fail(c, "admin.payments.list", err)
	}
	applog.Audit(c, "admin.payments.list", map[string]any{"count": len(items)})
	return c.JSON(items)
}
