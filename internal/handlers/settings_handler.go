package handlers

import (
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
}

func NewSettingsHandler(settingsService *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (h *SettingsHandler) List(c *fiber.Ctx) error {
	settings, err := h.settingsService.All()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list settings",
		})
	}
	return c.JSON(fiber.Map{"settings": settings})
}

type setSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

func (h *SettingsHandler) Set(c *fiber.Ctx) error {
	var req setSettingRequest
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "key and value are required",
		})
	}
	if req.Type == "" {
		req.Type = "string"
	}

	if err := h.settingsService.Set(req.Key, req.Value, req.Type); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to save setting",
		})
	}
	return c.JSON(fiber.Map{"message": "Setting saved"})
}

func (h *SettingsHandler) Delete(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "key is required",
		})
	}

	if err := h.settingsService.Delete(key); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete setting",
		})
	}
	return c.JSON(fiber.Map{"message": "Setting deleted"})
}
