package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightpages/storytime-backend/internal/billing"
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PremiumService applies asynchronous billing events to the premium_profiles
// cache. Webhooks are the path that keeps the cache fresh without the user
// actively refreshing.
type PremiumService struct {
	db       *gorm.DB
	profiles *billing.ProfileStore
}

func NewPremiumService(db *gorm.DB, profiles *billing.ProfileStore) *PremiumService {
	return &PremiumService{db: db, profiles: profiles}
}

func (s *PremiumService) HandleRevenueCatEvent(event *dto.RevenueCatEvent) error {
	userID, err := uuid.Parse(event.AppUserID)
	if err != nil {
		return fmt.Errorf("invalid app_user_id %q: %w", event.AppUserID, err)
	}

	switch event.Type {
	case "INITIAL_PURCHASE", "RENEWAL", "UNCANCELLATION", "PRODUCT_CHANGE":
		return s.upsertFromEvent(userID, event, true)
	case "EXPIRATION":
		return s.upsertFromEvent(userID, event, false)
	case "CANCELLATION":
		// Auto-renew was turned off; access continues until the expiration
		// event fires. Nothing to change yet.
		return nil
	default:
		return nil
	}
}

func (s *PremiumService) upsertFromEvent(userID uuid.UUID, event *dto.RevenueCatEvent, active bool) error {
	var expires *time.Time
	if event.ExpirationAtMs > 0 {
		t := msToTime(event.ExpirationAtMs)
		expires = &t
	}

	snapshot, _ := json.Marshal(event)

	return s.profiles.Upsert(userID, &billing.Resolution{
		Active:       active,
		Source:       sourceForStore(event.Store),
		ExpiresAt:    expires,
		Entitlements: snapshot,
	})
}

// ActivateFromStripe marks the user behind a billing email premium. Expiry
// may be nil for lifetime purchases; the next oracle refresh sharpens it.
func (s *PremiumService) ActivateFromStripe(email string, expiresAt *time.Time) error {
	userID, err := s.userIDForEmail(email)
	if err != nil {
		return err
	}
	return s.profiles.Upsert(userID, &billing.Resolution{
		Active:    true,
		Source:    models.PremiumSourceStripe,
		ExpiresAt: expiresAt,
	})
}

func (s *PremiumService) DeactivateFromStripe(email string) error {
	userID, err := s.userIDForEmail(email)
	if err != nil {
		return err
	}
	return s.profiles.Upsert(userID, &billing.Resolution{
		Active: false,
		Source: models.PremiumSourceNone,
	})
}

func (s *PremiumService) userIDForEmail(email string) (uuid.UUID, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return uuid.Nil, fmt.Errorf("no user for billing email: %w", err)
	}
	return user.ID, nil
}

func sourceForStore(store string) string {
	switch store {
	case "APP_STORE", "MAC_APP_STORE":
		return models.PremiumSourceApple
	case "PLAY_STORE":
		return models.PremiumSourceGoogle
	case "PROMOTIONAL":
		return models.PremiumSourcePromo
	default:
		return models.PremiumSourceRevenueCat
	}
}

func msToTime(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond))
}
