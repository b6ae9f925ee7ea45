package routes

import (
	"time"

	"github.com/brightpages/storytime-backend/internal/config"
	"github.com/brightpages/storytime-backend/internal/handlers"
	"github.com/brightpages/storytime-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	storyHandler *handlers.StoryHandler,
	limitsHandler *handlers.LimitsHandler,
	billingHandler *handlers.BillingHandler,
	webhookHandler *handlers.WebhookHandler,
	settingsHandler *handlers.SettingsHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth — public, stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	// Protected auth routes — JWT applied per-route so the public auth
	// endpoints above stay public
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)
	api.Delete("/auth/account", middleware.JWTProtected(cfg), authHandler.DeleteAccount)

	// Subscription check accepts either a bearer token or an explicit userId
	// body: the JWT layer here is optional so server-to-server callers reach
	// the body path while bearer callers get claims populated
	api.Post("/billing/subscription/check", middleware.JWTOptional(cfg), billingHandler.CheckSubscription)

	// Webhooks — provider auth, no JWT
	webhooks := api.Group("/webhooks")
	webhooks.Post("/revenuecat", webhookHandler.RevenueCat)
	webhooks.Post("/stripe", webhookHandler.Stripe)

	// Protected app surface
	protected := api.Group("/p", middleware.JWTProtected(cfg))
	protected.Post("/stories/generate", storyHandler.Generate)
	protected.Get("/stories", storyHandler.List)
	protected.Put("/stories/:id/favorite", storyHandler.ToggleFavorite)
	protected.Delete("/stories/:id", storyHandler.Delete)
	protected.Get("/limits", limitsHandler.Get)
	protected.Post("/billing/entitlements/refresh", billingHandler.RefreshEntitlements)

	// Admin settings panel
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/settings", settingsHandler.List)
	admin.Put("/settings", settingsHandler.Set)
	admin.Delete("/settings/:key", settingsHandler.Delete)
}
