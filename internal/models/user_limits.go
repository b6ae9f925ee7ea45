package models

import (
	"time"

	"github.com/google/uuid"
)

// UserLimits is the per-user daily generation counter. DailyStoriesUsed is
// only meaningful for the calendar day stored in LastResetDate (reference
// timezone, not server-local); any access on a later day must reset first.
type UserLimits struct {
	UserID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	DailyStoriesUsed int        `gorm:"not null;default:0" json:"daily_stories_used"`
	LastResetDate    string     `gorm:"size:10;not null" json:"last_reset_date"`
	TrialStartedAt   *time.Time `json:"trial_started_at"`
	TrialUsed        bool       `gorm:"default:false" json:"trial_used"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (UserLimits) TableName() string {
	return "user_limits"
}
