package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"

	"github.com/brightpages/storytime-backend/internal/config"
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBody = 65536

// WebhookHandler receives billing provider callbacks. Webhook writes are the
// only premium cache mutations that happen without the user asking.
type WebhookHandler struct {
	cfg            *config.Config
	premiumService *services.PremiumService
	stripeAPI      *client.API
}

func NewWebhookHandler(cfg *config.Config, premiumService *services.PremiumService, stripeAPI *client.API) *WebhookHandler {
	return &WebhookHandler{
		cfg:            cfg,
		premiumService: premiumService,
		stripeAPI:      stripeAPI,
	}
}

// RevenueCat authenticates with the shared Authorization value configured in
// the RevenueCat dashboard. Always 200 on processing errors so RevenueCat
// does not retry events we already judged malformed.
func (h *WebhookHandler) RevenueCat(c *fiber.Ctx) error {
	if h.cfg.RevenueCatWebhookAuth == "" {
		slog.Error("revenuecat webhook received but REVENUECAT_WEBHOOK_AUTH is not set")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhook not configured",
		})
	}

	provided := c.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.cfg.RevenueCatWebhookAuth)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var payload dto.RevenueCatWebhook
	if err := c.BodyParser(&payload); err != nil {
		slog.Warn("revenuecat webhook body unparseable", "error", err)
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.premiumService.HandleRevenueCatEvent(&payload.Event); err != nil {
		slog.Error("revenuecat event processing failed",
			"event_type", payload.Event.Type,
			"event_id", payload.Event.ID,
			"error", err)
		return c.JSON(fiber.Map{"received": true})
	}

	slog.Info("revenuecat event processed",
		"event_type", payload.Event.Type,
		"app_user_id", payload.Event.AppUserID)
	return c.JSON(fiber.Map{"received": true})
}

// Stripe verifies the signature header against the endpoint secret and
// applies checkout completions and subscription deletions to the cache.
func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) > maxWebhookBody {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{
			Error: true, Message: "Payload too large",
		})
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.Get("Stripe-Signature"),
		h.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		slog.Warn("stripe webhook signature verification failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid signature",
		})
	}

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(c, &event)
	case "customer.subscription.deleted":
		return h.handleSubscriptionDeleted(c, &event)
	default:
		return c.JSON(fiber.Map{"received": true})
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(c *fiber.Ctx, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.Error("stripe checkout.session.completed unmarshal failed", "error", err)
		return c.JSON(fiber.Map{"received": true})
	}

	email := ""
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	if email == "" {
		slog.Warn("checkout session has no customer email", "session_id", session.ID)
		return c.JSON(fiber.Map{"received": true})
	}

	// The session only proves the purchase happened; expiry is sharpened on
	// the next oracle refresh.
	if err := h.premiumService.ActivateFromStripe(email, nil); err != nil {
		slog.Error("stripe activation failed", "email", email, "error", err)
	} else {
		slog.Info("premium activated from stripe checkout", "email", email)
	}
	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) handleSubscriptionDeleted(c *fiber.Ctx, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		slog.Error("stripe customer.subscription.deleted unmarshal failed", "error", err)
		return c.JSON(fiber.Map{"received": true})
	}

	if sub.Customer == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	// The deletion event carries only the customer id; the email lives on
	// the customer object.
	customer, err := h.stripeAPI.Customers.Get(sub.Customer.ID, nil)
	if err != nil {
		slog.Error("stripe customer lookup failed", "customer_id", sub.Customer.ID, "error", err)
		return c.JSON(fiber.Map{"received": true})
	}
	if customer.Email == "" {
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.premiumService.DeactivateFromStripe(customer.Email); err != nil {
		slog.Error("stripe deactivation failed", "email", customer.Email, "error", err)
	} else {
		slog.Info("premium deactivated after subscription deletion", "email", customer.Email)
	}
	return c.JSON(fiber.Map{"received": true})
}
