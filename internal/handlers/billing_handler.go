package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/brightpages/storytime-backend/internal/billing"
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type BillingHandler struct {
	reconciler    *billing.Reconciler
	subscriptions billing.Oracle
}

func NewBillingHandler(reconciler *billing.Reconciler, subscriptions billing.Oracle) *BillingHandler {
	return &BillingHandler{reconciler: reconciler, subscriptions: subscriptions}
}

// RefreshEntitlements re-queries both billing authorities for the caller and
// returns the merged decision. This is what the app calls on foreground.
func (h *BillingHandler) RefreshEntitlements(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	res, err := h.reconciler.ResolvePremium(userID)
	if err != nil {
		if errors.Is(err, billing.ErrOraclesUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Billing providers temporarily unavailable",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to refresh entitlements",
		})
	}

	resp := dto.EntitlementRefreshResponse{
		Active:   res.Active,
		Source:   res.Source,
		Degraded: res.Degraded,
	}
	if res.ExpiresAt != nil {
		formatted := res.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &formatted
	}
	if len(res.Entitlements) > 0 {
		resp.Entitlements = res.Entitlements
	} else {
		resp.Entitlements = json.RawMessage("{}")
	}

	return c.JSON(resp)
}

// CheckSubscription answers the bare "is this user subscribed" question. The
// user comes from the bearer token when present, or from an explicit userId
// in the body for server-to-server callers.
func (h *BillingHandler) CheckSubscription(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		var req dto.SubscriptionCheckRequest
		if parseErr := c.BodyParser(&req); parseErr != nil || req.UserID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		userID, err = uuid.Parse(req.UserID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid userId",
			})
		}
	}

	result, err := h.subscriptions.CheckActive(userID.String())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Subscription provider unavailable",
		})
	}

	return c.JSON(dto.SubscriptionCheckResponse{Subscribed: result.Active})
}
