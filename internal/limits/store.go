package limits

import (
	"errors"
	"fmt"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DateLayout is the calendar-date format stored in last_reset_date.
const DateLayout = "2006-01-02"

// ErrStorageUnavailable wraps storage failures so callers surface an error
// instead of guessing an allow/deny answer.
var ErrStorageUnavailable = errors.New("limits storage unavailable")

// Store owns the user_limits table. All mutations go through single atomic
// SQL statements; there is no client-side read-modify-write anywhere.
type Store struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, loc: referenceLocation(), now: time.Now}
}

// referenceLocation returns the fixed timezone used to compute "today" for
// the daily reset, independent of server or client local time.
func referenceLocation() *time.Location {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}

// Today returns the current calendar date in the reference timezone.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// GetOrCreate returns the user's limits row, creating a zeroed one if none
// exists. The insert is a database-side upsert (ON CONFLICT DO NOTHING), so
// concurrent first-time callers cannot create duplicate rows.
func (s *Store) GetOrCreate(userID uuid.UUID) (*models.UserLimits, error) {
	started := s.now()
	fresh := models.UserLimits{
		UserID:           userID,
		DailyStoriesUsed: 0,
		LastResetDate:    s.Today(),
		TrialStartedAt:   &started,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	var limits models.UserLimits
	if err := s.db.First(&limits, "user_id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &limits, nil
}

// ResetIfNewDay zeroes the counter and advances last_reset_date when the
// stored date is behind today in the reference timezone. The guard in the
// WHERE clause makes concurrent invocations idempotent: losers match zero
// rows and re-read the already-reset state.
func (s *Store) ResetIfNewDay(limits *models.UserLimits) (*models.UserLimits, error) {
	today := s.Today()
	if limits.LastResetDate == today {
		return limits, nil
	}

	result := s.db.Model(&models.UserLimits{}).
		Where("user_id = ? AND last_reset_date <> ?", limits.UserID, today).
		Updates(map[string]interface{}{
			"daily_stories_used": 0,
			"last_reset_date":    today,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, result.Error)
	}

	var updated models.UserLimits
	if err := s.db.First(&updated, "user_id = ?", limits.UserID).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &updated, nil
}

// ConsumeDaily atomically spends one generation if the counter is below max
// for today. The check and the increment are a single conditional UPDATE, so
// concurrent requests for the same user serialize on the row and at most max
// of them succeed per calendar day.
func (s *Store) ConsumeDaily(userID uuid.UUID, max int) (bool, *models.UserLimits, error) {
	today := s.Today()
	result := s.db.Model(&models.UserLimits{}).
		Where("user_id = ? AND last_reset_date = ? AND daily_stories_used < ?", userID, today, max).
		UpdateColumn("daily_stories_used", gorm.Expr("daily_stories_used + 1"))
	if result.Error != nil {
		return false, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, result.Error)
	}

	var limits models.UserLimits
	if err := s.db.First(&limits, "user_id = ?", userID).Error; err != nil {
		return false, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return result.RowsAffected == 1, &limits, nil
}
