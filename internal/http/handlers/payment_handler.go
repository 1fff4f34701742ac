package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/services"
	"github.com/omar4917/real-estate-project/internal/validate"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

type initiateReq struct {
	Provider  string `json:"provider"`
	BookingID string `json:"booking_id"`
}

type walletExecuteReq struct {
	PaymentID string `json:"payment_id" validate:"required,resid"`
}

// POST /api/payments/initiate
func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	u := currentUser(c)
	var req initiateReq
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "body", "Invalid JSON body.")
	}
	// provider is checked before anything else, including booking_id
	if _, err := payments.ParseName(req.Provider); err != nil {
		return fail(c, "payment.initiate", err)
	}
	bookingID, ok := validate.ID(req.BookingID)
	if !ok {
		return badInput(c, "booking_id", "booking_id is required.")
	}

	rc := payments.RequestContext{BaseURL: c.BaseURL(), UserID: u.ID}
	init, created, err := h.Payments.Initiate(c.UserContext(), u.ID, bookingID, req.Provider, rc)
	if err != nil {
		return fail(c, "payment.initiate", err)
	}

	fields := map[string]any{
		"payment_id":     init.PaymentID,
		"booking_id":     bookingID,
		"provider":       init.Provider,
		"transaction_id": init.TransactionID,
		"status":         init.Status,
	}
	if !created {
		applog.Info(c, "payment.initiate.reuse", fields)
		return c.Status(fiber.StatusOK).JSON(init)
	}
	applog.Audit(c, "payment.initiate", fields)
	return c.Status(fiber.StatusCreated).JSON(init)
}

func (h *PaymentHandler) webhook(c *fiber.Ctx, provider payments.Name, signature string) error {
	payload := append([]byte(nil), c.Body()...)
	res, err := h.Payments.HandleWebhook(c.UserContext(), provider, payload, signature)
	if err != nil {
		return fail(c, "webhook."+string(provider), err)
	}
	applog.Info(c, "webhook."+string(provider), map[string]any{
		"outcome":        res.Outcome,
		"payment_id":     res.Payment.ID,
		"transaction_id": res.Payment.TransactionID,
	})
	return c.JSON(fiber.Map{"received": res.Received()})
}

// POST /api/payments/webhook/stripe
func (h *PaymentHandler) StripeWebhook(c *fiber.Ctx) error {
	return h.webhook(c, payments.Stripe, c.Get("Stripe-Signature"))
}

// POST /api/payments/webhook/bkash
func (h *PaymentHandler) BkashWebhook(c *fiber.Ctx) error {
	return h.webhook(c, payments.Bkash, c.Get("X-Signature"))
}

// POST /api/payments/bkash/execute
func (h *PaymentHandler) BkashExecute(c *fiber.Ctx) error {
	u := currentUser(c)
	var req walletExecuteReq
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "body", "Invalid JSON body.")
	}
	if err := validate.Struct(req); err != nil {
		return badInput(c, "payment_id", "payment_id is required")
	}
	raw, status, err := h.Payments.ExecuteWallet(c.UserContext(), u.ID, req.PaymentID)
	if err != nil {
		return fail(c, "payment.bkash.execute", err)
	}
	applog.Audit(c, "payment.bkash.execute", map[string]any{"payment_id": req.PaymentID, "status": status})
	return c.JSON(fiber.Map{"status": status, "raw": json.RawMessage(raw)})
}

// GET /api/payments/bkash/query?payment_id=
func (h *PaymentHandler) BkashQuery(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Query("payment_id"))
	if !ok {
		return badInput(c, "payment_id", "payment_id is required")
	}
	raw, err := h.Payments.QueryWallet(c.UserContext(), u.ID, id)
	if err != nil {
		return fail(c, "payment.bkash.query", err)
	}
	return c.JSON(fiber.Map{"raw": json.RawMessage(raw)})
}
