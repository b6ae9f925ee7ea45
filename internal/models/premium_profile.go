package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Premium sources, in display precedence order.
const (
	PremiumSourceNone       = "none"
	PremiumSourceStripe     = "stripe"
	PremiumSourceApple      = "apple"
	PremiumSourceGoogle     = "google"
	PremiumSourceRevenueCat = "revenuecat"
	PremiumSourcePromo      = "promo"
)

// PremiumProfile caches the merged entitlement decision per user. It is a
// cache, never the decision authority: the oracles rebuild it whenever
// staleness cannot be tolerated. IAPEntitlements holds the last raw
// entitlement payload for audit only.
type PremiumProfile struct {
	UserID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	PremiumActive    bool           `gorm:"not null;default:false" json:"premium_active"`
	PremiumSource    string         `gorm:"size:20;not null;default:'none'" json:"premium_source"`
	PremiumExpiresAt *time.Time     `json:"premium_expires_at"`
	IAPEntitlements  datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"iap_entitlements"`
	CheckedAt        time.Time      `json:"checked_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (PremiumProfile) TableName() string {
	return "premium_profiles"
}

// CurrentlyActive re-validates expiry at read time instead of trusting the
// stored flag: a stale row with a past expiry must read as non-premium.
func (p *PremiumProfile) CurrentlyActive(now time.Time) bool {
	if !p.PremiumActive {
		return false
	}
	if p.PremiumExpiresAt == nil {
		return true
	}
	return p.PremiumExpiresAt.After(now)
}
