package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/services"
)

const genericFailure = "Something went wrong. Please try again."

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}

// businessDetail maps rule violations to the message shown to clients.
var businessDetail = []struct {
	err error
	msg string
}{
	{services.ErrInvalidWindow, "end_at must be after start_at."},
	{services.ErrSlotTaken, "Property is not available for that slot."},
	{services.ErrAlreadyCanceled, "Booking already canceled."},
	{services.ErrCannotCancelPaid, "Cannot cancel a paid booking."},
	{services.ErrAlreadyPaid, "Booking already paid."},
	{services.ErrAlreadyCompleted, "Payment already completed for this booking."},
	{services.ErrBookingCanceled, "Booking is canceled."},
	{payments.ErrInvalidProvider, "Invalid provider."},
}

// fail converts a service error into the JSON error surface. Business-rule
// violations become 400 with a readable detail; anything unexpected is logged
// and hidden behind a generic 500.
func fail(c *fiber.Ctx, action string, err error) error {
	if errors.Is(err, services.ErrNotFound) {
		applog.Security(c, action+".notfound", nil)
		return detail(c, fiber.StatusNotFound, "Not found.")
	}
	for _, b := range businessDetail {
		if errors.Is(err, b.err) {
			applog.Security(c, action+".fail", map[string]any{"reason": err.Error()})
			return detail(c, fiber.StatusBadRequest, b.msg)
		}
	}

	var pe *payments.ProviderError
	var ce *payments.ConfigurationError
	switch {
	case errors.As(err, &pe):
		applog.Error(c, action+".provider.fail", err, map[string]any{"provider": pe.Provider, "status": pe.Status})
		return detail(c, fiber.StatusBadRequest, pe.Error())
	case errors.As(err, &ce):
		applog.Error(c, action+".config.fail", err, map[string]any{"provider": ce.Provider})
		return detail(c, fiber.StatusBadRequest, ce.Error())
	case errors.Is(err, payments.ErrInvalidWebhook):
		applog.Security(c, "webhook.invalid", map[string]any{"reason": err.Error()})
		return detail(c, fiber.StatusBadRequest, err.Error())
	}

	applog.Error(c, action+".error", err, nil)
	return detail(c, fiber.StatusInternalServerError, genericFailure)
}

func badInput(c *fiber.Ctx, field, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return detail(c, fiber.StatusBadRequest, msg)
}

// ErrorHandler keeps unhandled errors in the JSON shape without leaking internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return detail(c, fe.Code, fe.Message)
	}
	applog.Error(c, "server.error", err, nil)
	return detail(c, fiber.StatusInternalServerError, genericFailure)
}
