package handlers

import (
	"errors"

	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/identity"
	"github.com/brightpages/storytime-backend/internal/quota"
	"github.com/brightpages/storytime-backend/internal/story"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type StoryHandler struct {
	storyService *story.Service
}

func NewStoryHandler(storyService *story.Service) *StoryHandler {
	return &StoryHandler{storyService: storyService}
}

// Generate runs the gated generation pipeline. Quota denials answer 429 with
// limitReached so the client shows an upgrade prompt instead of an error.
func (h *StoryHandler) Generate(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req story.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	record, decision, err := h.storyService.Generate(userID, &req)
	if err != nil {
		var validationErr *story.ValidationError
		if errors.As(err, &validationErr) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: validationErr.Error(),
			})
		}
		if errors.Is(err, story.ErrGenerationFailed) {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to generate story. Please try again.",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	if decision != nil && !decision.CanGenerate {
		if decision.Reason == quota.ReasonNotAuthenticated {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Error:        true,
			Message:      "Daily story limit reached. Upgrade to premium for unlimited stories.",
			LimitReached: true,
		})
	}

	return c.JSON(record)
}

func (h *StoryHandler) List(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	stories, total, err := h.storyService.GetUserStories(userID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch stories",
		})
	}

	return c.JSON(fiber.Map{
		"stories": stories,
		"total":   total,
	})
}

func (h *StoryHandler) ToggleFavorite(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	storyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid story id",
		})
	}

	favorite, err := h.storyService.ToggleFavorite(userID, storyID)
	if err != nil {
		return storyErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"is_favorite": favorite})
}

func (h *StoryHandler) Delete(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	storyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid story id",
		})
	}

	if err := h.storyService.DeleteStory(userID, storyID); err != nil {
		return storyErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "Story deleted"})
}

func storyErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, story.ErrStoryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Story not found",
		})
	case errors.Is(err, story.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "You do not own this story",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
}
