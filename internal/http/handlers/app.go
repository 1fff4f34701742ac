package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "github.com/omar4917/real-estate-project/internal/log"
)

// NewApp builds the fiber app with middleware and every API route mounted.
func NewApp(deps *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    1 << 20, // 1 MiB
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return detail(c, fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
		},
	}))

	Mount(app, deps)

	app.Use(func(c *fiber.Ctx) error {
		return detail(c, fiber.StatusNotFound, "Not found.")
	})
	return app
}

// Mount registers the API routes on app.
func Mount(app *fiber.App, deps *Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	api := app.Group("/api")

	// Auth (login throttled)
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return detail(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	}), deps.AuthHandler.Login)

	// Catalog reads
	api.Get("/properties/:id", deps.PropertyHandler.Detail)
	api.Get("/properties/:id/availability", deps.PropertyHandler.Availability)
	api.Get("/properties/:id/recommendations", deps.PropertyHandler.Recommendations)
	api.Get("/categories/:id/descendants", deps.CategoryHandler.Descendants)

	user := RequireUser(deps.Auth)

	// Bookings
	api.Post("/bookings", user, deps.BookingHandler.Create)
	api.Get("/bookings", user, deps.BookingHandler.List)
	api.Post("/bookings/:id/cancel", user, deps.BookingHandler.Cancel)

	// Payments
	api.Post("/payments/initiate", user, deps.PaymentHandler.Initiate)
	api.Post("/payments/bkash/execute", user, deps.PaymentHandler.BkashExecute)
	api.Get("/payments/bkash/query", user, deps.PaymentHandler.BkashQuery)

	// Provider callbacks: unauthenticated, throttled per source
	hooks := limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|webhook"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.webhook.hit", nil)
			return detail(c, fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
		},
	})
	api.Post("/payments/webhook/stripe", hooks, deps.PaymentHandler.StripeWebhook)
	api.Post("/payments/webhook/bkash", hooks, deps.PaymentHandler.BkashWebhook)

	// Admin
	admin := api.Group("/admin", RequireAdmin(deps.Auth))
	admin.Get("/payments", deps.AdminHandler.ListPayments)
}
