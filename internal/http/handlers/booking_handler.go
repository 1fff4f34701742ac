package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/services"
	"github.com/omar4917/real-estate-project/internal/validate"
)

type BookingHandler struct {
	Bookings *services.BookingService
	Loc      *time.Location // zone for naive timestamps
}

type createBookingReq struct {
	PropertyID string `json:"property_id" validate:"required,resid"`
	StartAt    string `json:"start_at" validate:"required"`
	EndAt      string `json:"end_at" validate:"required"`
}

// parseWindow reads start/end timestamps, writing the 400 itself on failure.
func parseWindow(c *fiber.Ctx, loc *time.Location, rawStart, rawEnd string) (time.Time, time.Time, bool, error) {
	start, err := validate.Timestamp(rawStart, loc)
	if err != nil {
		return start, start, false, badInput(c, "start_at", "start_at must be an ISO-8601 timestamp.")
	}
	end, err := validate.Timestamp(rawEnd, loc)
	if err != nil {
		return start, end, false, badInput(c, "end_at", "end_at must be an ISO-8601 timestamp.")
	}
	if !end.After(start) {
		return start, end, false, badInput(c, "end_at", "end_at must be after start_at.")
	}
	return start, end, true, nil
}

// POST /api/bookings
func (h *BookingHandler) Create(c *fiber.Ctx) error {
	u := currentUser(c)
	var req createBookingReq
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "body", "Invalid JSON body.")
	}
	if err := validate.Struct(req); err != nil {
		return badInput(c, "booking", err.Error())
	}
	start, end, ok, err := parseWindow(c, h.Loc, req.StartAt, req.EndAt)
	if !ok {
		return err
	}

	b, err := h.Bookings.Reserve(c.UserContext(), u.ID, req.PropertyID, start, end)
	if err != nil {
		return fail(c, "booking.create", err)
	}
	applog.Audit(c, "booking.create", map[string]any{
		"booking_id":   b.ID,
		"property_id":  b.PropertyID,
		"start_at":     b.StartAt,
		"end_at":       b.EndAt,
		"total_amount": b.TotalAmount.StringFixed(2),
	})
	return c.Status(fiber.StatusCreated).JSON(toBookingView(b))
}

// GET /api/bookings
func (h *BookingHandler) List(c *fiber.Ctx) error {
	u := currentUser(c)
	items, err := h.Bookings.ListForUser(c.UserContext(), u.ID)
	if err != nil {
		return fail(c, "booking.list", err)
	}
	out := make([]bookingView, 0, len(items))
	for _, b := range items {
		out = append(out, toBookingView(b))
	}
	return c.JSON(out)
}

// POST /api/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return detail(c, fiber.StatusNotFound, "Not found.")
	}
	b, err := h.Bookings.Cancel(c.UserContext(), u.ID, id)
	if err != nil {
		return fail(c, "booking.cancel", err)
	}
	applog.Audit(c, "booking.cancel", map[string]any{"booking_id": b.ID})
	return c.JSON(fiber.Map{"detail": "Booking canceled."})
}
