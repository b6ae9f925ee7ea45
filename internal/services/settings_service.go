package services

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/brightpages/storytime-backend/internal/config"
	"github.com/brightpages/storytime-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting keys read at request time.
const (
	SettingDailyStoryLimit = "daily_story_limit"
	SettingBypassLimits    = "bypass_limits"
)

// SettingsService stores runtime-tunable flags. Values seeded from env
// config at boot can be overridden by admins without a redeploy, which is
// how the "treat everyone as premium" review mode is expressed instead of
// commenting out enforcement.
type SettingsService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewSettingsService(db *gorm.DB, cfg *config.Config) *SettingsService {
	return &SettingsService{db: db, cfg: cfg}
}

// SeedDefaults inserts config-derived defaults without clobbering existing
// admin overrides.
func (s *SettingsService) SeedDefaults() {
	defaults := []models.AppSetting{
		{Key: SettingDailyStoryLimit, Value: strconv.Itoa(s.cfg.DailyStoryLimit), Type: "int"},
		{Key: SettingBypassLimits, Value: strconv.FormatBool(s.cfg.BypassLimits), Type: "bool"},
	}
	for _, d := range defaults {
		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&d).Error; err != nil {
			slog.Error("failed to seed setting", "key", d.Key, "error", err)
		}
	}
}

func (s *SettingsService) get(key string) (string, bool) {
	var setting models.AppSetting
	if err := s.db.First(&setting, "key = ?", key).Error; err != nil {
		return "", false
	}
	return setting.Value, true
}

// DailyStoryLimit returns the free-tier daily generation cap.
func (s *SettingsService) DailyStoryLimit() int {
	if v, ok := s.get(SettingDailyStoryLimit); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return s.cfg.DailyStoryLimit
}

// BypassLimits reports whether quota enforcement is switched off.
func (s *SettingsService) BypassLimits() bool {
	if v, ok := s.get(SettingBypassLimits); ok {
		return v == "true"
	}
	return s.cfg.BypassLimits
}

// All returns every setting for the admin panel.
func (s *SettingsService) All() ([]models.AppSetting, error) {
	var settings []models.AppSetting
	if err := s.db.Order("key ASC").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

// Set creates or updates a setting value.
func (s *SettingsService) Set(key, value, valueType string) error {
	setting := models.AppSetting{Key: key, Value: value, Type: valueType}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&setting).Error
}

// Delete removes a setting, falling back to env defaults.
func (s *SettingsService) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&models.AppSetting{}).Error
}
