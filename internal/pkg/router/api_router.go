package router

import (
	"time"

	"github.com/ManuelReschke/MeterGate/app/controllers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Options configures the API routes.
type Options struct {
	AdminUser     string
	AdminPassword string
	// AdminRateLimit is the number of admin requests allowed per minute.
	AdminRateLimit int
	// LimiterStorage shares limiter state across instances. nil keeps it in memory.
	LimiterStorage fiber.Storage
}

type ApiRouter struct {
	opts Options
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Get("/health", controllers.HandleHealth)

	// Stripe controls its own retry pace, so the webhook is not rate limited.
	v1.Post("/billing/webhook/stripe", controllers.HandleStripeWebhook)

	h.registerAdminRoutes(v1)
}

func (h ApiRouter) registerAdminRoutes(v1 fiber.Router) {
	admin := v1.Group("/admin", h.adminAuth(), limiter.New(limiter.Config{
		Max:        h.opts.AdminRateLimit,
		Expiration: time.Minute,
		Storage:    h.opts.LimiterStorage,
	}))
	admin.Get("/", controllers.HandleAdminDashboard)
	admin.Post("/refunds", controllers.HandleAdminCreateRefund)
	admin.Get("/jobs", controllers.HandleAdminListJobs)
	admin.Post("/jobs/:name/run", controllers.HandleAdminRunJob)
	admin.Get("/reports/weekly/latest", controllers.HandleAdminLatestReport)
	admin.Get("/billing/outcomes", controllers.HandleAdminWebhookOutcomes)
	admin.Get("/subscribers/:id", controllers.HandleAdminGetSubscriber)
}

// adminAuth guards the admin group with basic auth. Without configured
// credentials the admin API is closed.
func (h ApiRouter) adminAuth() fiber.Handler {
	if h.opts.AdminUser == "" || h.opts.AdminPassword == "" {
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin_disabled", "message": "Admin credentials not configured"})
		}
	}
	return basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.opts.AdminUser: h.opts.AdminPassword,
		},
		Realm: "MeterGate Admin",
	})
}

func NewApiRouter(opts Options) *ApiRouter {
	if opts.AdminRateLimit <= 0 {
		opts.AdminRateLimit = 60
	}
	return &ApiRouter{opts: opts}
}
