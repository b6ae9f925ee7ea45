package handlers

import (
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/identity"
	"github.com/brightpages/storytime-backend/internal/limits"
	"github.com/gofiber/fiber/v2"
)

type LimitsHandler struct {
	store *limits.Store
}

func NewLimitsHandler(store *limits.Store) *LimitsHandler {
	return &LimitsHandler{store: store}
}

// Get returns the caller's usage row, creating it atomically on first
// contact and rolling the counter over if the reference-timezone day changed.
func (h *LimitsHandler) Get(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	row, err := h.store.GetOrCreate(userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Usage data temporarily unavailable",
		})
	}
	row, err = h.store.ResetIfNewDay(row)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Usage data temporarily unavailable",
		})
	}

	return c.JSON(row)
}
