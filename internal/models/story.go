package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Story struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title         string         `gorm:"not null;size:255" json:"title"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	ReadingLevel  string         `gorm:"size:50" json:"reading_level"`
	InterestLevel string         `gorm:"size:50" json:"interest_level"`
	Theme         string         `gorm:"size:100" json:"theme"`
	Length        string         `gorm:"size:20" json:"length"`
	Language      string         `gorm:"size:50" json:"language"`
	SightWords    datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"sight_words"`
	IsFavorite    bool           `gorm:"default:false" json:"is_favorite"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	User          User           `gorm:"foreignKey:UserID" json:"-"`
}

// BeforeCreate assigns the id app-side so the create response carries it
// without a round trip.
func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
