package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore owns the premium_profiles cache table.
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Get(userID uuid.UUID) (*models.PremiumProfile, error) {
	var profile models.PremiumProfile
	if err := s.db.First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert writes the merged entitlement decision. The writer never records
// active=true alongside a past expiry; a stale-but-active input is stored as
// inactive so a naive cache reader cannot over-grant.
func (s *ProfileStore) Upsert(userID uuid.UUID, res *Resolution) error {
	now := time.Now()

	active := res.Active
	source := res.Source
	if active && res.ExpiresAt != nil && !res.ExpiresAt.After(now) {
		active = false
		source = models.PremiumSourceNone
	}
	if !active {
		source = models.PremiumSourceNone
	}

	snapshot := datatypes.JSON([]byte("{}"))
	if len(res.Entitlements) > 0 && json.Valid(res.Entitlements) {
		snapshot = datatypes.JSON(res.Entitlements)
	}

	profile := models.PremiumProfile{
		UserID:           userID,
		PremiumActive:    active,
		PremiumSource:    source,
		PremiumExpiresAt: res.ExpiresAt,
		IAPEntitlements:  snapshot,
		CheckedAt:        now,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"premium_active", "premium_source", "premium_expires_at",
			"iap_entitlements", "checked_at", "updated_at",
		}),
	}).Create(&profile).Error
	if err != nil {
		return fmt.Errorf("failed to upsert premium profile: %w", err)
	}
	return nil
}
