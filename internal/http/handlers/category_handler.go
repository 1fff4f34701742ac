package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/omar4917/real-estate-project/internal/services"
	"github.com/omar4917/real-estate-project/internal/validate"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

// GET /api/categories/:id/descendants
func (h *CategoryHandler) Descendants(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return detail(c, fiber.StatusNotFound, "Not found.")
	}
	ids, err := h.Catalog.Descendants(c.UserContext(), id)
	if err != nil {
		return fail(c, "category.descendants", err)
	}
	return c.JSON(fiber.Map{"category_id": id, "ids": ids})
}
