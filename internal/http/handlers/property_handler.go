package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/services"
	"github.com/omar4917/real-estate-project/internal/validate"
)

type PropertyHandler struct {
	Catalog  *services.CatalogService
	Bookings *services.BookingService
	Loc      *time.Location
}

// GET /api/properties/:id
func (h *PropertyHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return detail(c, fiber.StatusNotFound, "Not found.")
	}
	p, err := h.Catalog.GetProperty(c.UserContext(), id)
	if err != nil {
		return fail(c, "property.detail", err)
	}
	return c.JSON(toPropertyView(p))
}

// GET /api/properties/:id/availability?start_at=&end_at=
func (h *PropertyHandler) Availability(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return detail(c, fiber.StatusNotFound, "Not found.")
	}
	start, end, ok, err := parseWindow(c, h.Loc, c.Query("start_at"), c.Query("end_at"))
	if !ok {
		return err
	}
	p, err := h.Catalog.GetProperty(c.UserContext(), id)
	if err != nil {
		return fail(c, "property.availability", err)
	}
	free, err := h.Bookings.CheckAvailability(c.UserContext(), id, start, end)
	if err != nil {
		return fail(c, "property.availability", err)
	}
	return c.JSON(fiber.Map{
		"property_id": id,
		"start_at":    start,
		"end_at":      end,
		"available":   p.Active() && free,
	})
}

// GET /api/properties/:id/recommendations
func (h *PropertyHandler) Recommendations(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return detail(c, fiber.StatusNotFound, "Not found.")
	}
	items, err := h.Catalog.Recommendations(c.UserContext(), id)
	if err != nil {
		return fail(c, "property.recommendations", err)
	}
	out := make([]propertyView, 0, len(items))
	for _, p := range items {
		out = append(out, toPropertyView(p))
	}
	applog.Info(c, "property.recommendations", map[string]any{"property_id": id, "count": len(out)})
	return c.JSON(out)
}
