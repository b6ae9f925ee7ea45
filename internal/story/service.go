package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/brightpages/storytime-backend/internal/quota"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrGenerationFailed = errors.New("story generation failed")
	ErrStoryNotFound    = errors.New("story not found")
	ErrNotOwner         = errors.New("you do not own this story")
)

// ValidationError names the first missing required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}

// Gate is the quota decision function consulted before every generation.
type Gate interface {
	CheckAndConsume(userID uuid.UUID) (*quota.Decision, error)
}

// Service runs the generation pipeline: validate, gate, prompt, call the
// generator, parse, persist.
type Service struct {
	db        *gorm.DB
	gate      Gate
	generator TextGenerator
}

func NewService(db *gorm.DB, gate Gate, generator TextGenerator) *Service {
	return &Service{db: db, gate: gate, generator: generator}
}

// Validate checks required fields in a fixed order and reports the first
// missing one. It runs before any oracle or store call.
func (req *GenerateRequest) Validate() error {
	checks := []struct {
		field string
		value string
	}{
		{"readingLevel", req.ReadingLevel},
		{"interestLevel", req.InterestLevel},
		{"theme", req.Theme},
		{"length", req.Length},
		{"language", req.Language},
	}
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			return &ValidationError{Field: c.field}
		}
	}
	return nil
}

// Generate runs the full pipeline. A nil story with a non-nil decision means
// the quota gate denied the request. A failed upstream call does NOT refund
// the quota unit consumed by the gate: retries are not free.
func (s *Service) Generate(userID uuid.UUID, req *GenerateRequest) (*models.Story, *quota.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	decision, err := s.gate.CheckAndConsume(userID)
	if err != nil {
		return nil, nil, err
	}
	if !decision.CanGenerate {
		// The generator must never be called for a denied request.
		return nil, decision, nil
	}

	prompt := BuildPrompt(req)
	raw, err := s.generator.GenerateText(prompt, TokenBudget(req.Length))
	if err != nil {
		slog.Error("story generation failed", "user_id", userID, "error", err)
		return nil, decision, ErrGenerationFailed
	}

	title, content := parseStoryPayload(raw, req)

	sightWords := datatypes.JSON([]byte("[]"))
	if len(req.Keywords) > 0 {
		if b, err := json.Marshal(req.Keywords); err == nil {
			sightWords = datatypes.JSON(b)
		}
	}

	record := &models.Story{
		UserID:        userID,
		Title:         title,
		Content:       content,
		ReadingLevel:  req.ReadingLevel,
		InterestLevel: req.InterestLevel,
		Theme:         req.Theme,
		Length:        req.Length,
		Language:      req.Language,
		SightWords:    sightWords,
	}
	if err := s.db.Create(record).Error; err != nil {
		// The story was generated and the quota spent; losing the save is
		// not worth failing the request over.
		slog.Error("failed to persist story", "user_id", userID, "error", err)
	}

	return record, decision, nil
}

// parseStoryPayload accepts either the instructed JSON object or, when the
// model skips the format, the raw text as content with a synthesized title.
func parseStoryPayload(raw string, req *GenerateRequest) (string, string) {
	content := strings.TrimSpace(raw)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	var parsed struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Content != "" {
		title := parsed.Title
		if title == "" {
			title = fallbackTitle(req)
		}
		return title, parsed.Content
	}

	return fallbackTitle(req), strings.TrimSpace(raw)
}

func fallbackTitle(req *GenerateRequest) string {
	theme := capitalize(strings.TrimSpace(req.Theme))
	if req.IsDrSeussStyle {
		return fmt.Sprintf("A Whimsical %s Tale", theme)
	}
	return fmt.Sprintf("A %s Tale", theme)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// GetUserStories returns the user's saved stories, newest first.
func (s *Service) GetUserStories(userID uuid.UUID, limit, offset int) ([]models.Story, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var stories []models.Story
	var total int64

	query := s.db.Where("user_id = ?", userID)
	query.Model(&models.Story{}).Count(&total)

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&stories).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch stories: %w", err)
	}
	return stories, total, nil
}

// ToggleFavorite flips the favorite flag on a story the user owns.
func (s *Service) ToggleFavorite(userID, storyID uuid.UUID) (bool, error) {
	var record models.Story
	if err := s.db.First(&record, "id = ?", storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrStoryNotFound
		}
		return false, fmt.Errorf("failed to fetch story: %w", err)
	}
	if record.UserID != userID {
		return false, ErrNotOwner
	}

	record.IsFavorite = !record.IsFavorite
	if err := s.db.Save(&record).Error; err != nil {
		return false, fmt.Errorf("failed to update story: %w", err)
	}
	return record.IsFavorite, nil
}

// DeleteStory removes a story the user owns.
func (s *Service) DeleteStory(userID, storyID uuid.UUID) error {
	var record models.Story
	if err := s.db.First(&record, "id = ?", storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStoryNotFound
		}
		return fmt.Errorf("failed to fetch story: %w", err)
	}
	if record.UserID != userID {
		return ErrNotOwner
	}
	return s.db.Delete(&record).Error
}
