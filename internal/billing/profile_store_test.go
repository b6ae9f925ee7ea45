package billing

import (
	"fmt"
	"testing"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.PremiumProfile{}))
	return db
}

func TestProfileUpsert_ActiveWithFutureExpiry(t *testing.T) {
	store := NewProfileStore(openBillingTestDB(t))
	userID := uuid.New()
	expires := time.Now().Add(30 * 24 * time.Hour)

	err := store.Upsert(userID, &Resolution{
		Active:    true,
		Source:    models.PremiumSourceStripe,
		ExpiresAt: &expires,
	})
	require.NoError(t, err)

	profile, err := store.Get(userID)
	require.NoError(t, err)
	require.True(t, profile.PremiumActive)
	require.Equal(t, models.PremiumSourceStripe, profile.PremiumSource)
	require.NotNil(t, profile.PremiumExpiresAt)
	require.True(t, profile.CurrentlyActive(time.Now()))
}

func TestProfileUpsert_ActiveWithPastExpiryStoredInactive(t *testing.T) {
	store := NewProfileStore(openBillingTestDB(t))
	userID := uuid.New()
	expired := time.Now().Add(-time.Hour)

	err := store.Upsert(userID, &Resolution{
		Active:    true,
		Source:    models.PremiumSourceRevenueCat,
		ExpiresAt: &expired,
	})
	require.NoError(t, err)

	profile, err := store.Get(userID)
	require.NoError(t, err)
	require.False(t, profile.PremiumActive, "writer must not persist active alongside a past expiry")
	require.Equal(t, models.PremiumSourceNone, profile.PremiumSource)
}

func TestProfileUpsert_LifetimeHasNoExpiry(t *testing.T) {
	store := NewProfileStore(openBillingTestDB(t))
	userID := uuid.New()

	err := store.Upsert(userID, &Resolution{
		Active: true,
		Source: models.PremiumSourceStripe,
	})
	require.NoError(t, err)

	profile, err := store.Get(userID)
	require.NoError(t, err)
	require.True(t, profile.PremiumActive)
	require.Nil(t, profile.PremiumExpiresAt)
	require.True(t, profile.CurrentlyActive(time.Now()))
}

func TestProfileUpsert_SecondWriteUpdates(t *testing.T) {
	db := openBillingTestDB(t)
	store := NewProfileStore(db)
	userID := uuid.New()

	require.NoError(t, store.Upsert(userID, &Resolution{Active: true, Source: models.PremiumSourceStripe}))
	require.NoError(t, store.Upsert(userID, &Resolution{Active: false, Source: models.PremiumSourceNone}))

	profile, err := store.Get(userID)
	require.NoError(t, err)
	require.False(t, profile.PremiumActive)

	var count int64
	require.NoError(t, db.Model(&models.PremiumProfile{}).Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProfileUpsert_SnapshotStored(t *testing.T) {
	store := NewProfileStore(openBillingTestDB(t))
	userID := uuid.New()
	snapshot := []byte(`{"premium":{"expires_date":null,"product_identifier":"premium_annual"}}`)

	err := store.Upsert(userID, &Resolution{
		Active:       true,
		Source:       models.PremiumSourceRevenueCat,
		Entitlements: snapshot,
	})
	require.NoError(t, err)

	profile, err := store.Get(userID)
	require.NoError(t, err)
	require.JSONEq(t, string(snapshot), string(profile.IAPEntitlements))
}

func TestCurrentlyActive_ReaderDefense(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	// A stale cache row claiming active past its expiry must read as free.
	stale := models.PremiumProfile{PremiumActive: true, PremiumExpiresAt: &past}
	require.False(t, stale.CurrentlyActive(time.Now()))

	fresh := models.PremiumProfile{PremiumActive: true, PremiumExpiresAt: &future}
	require.True(t, fresh.CurrentlyActive(time.Now()))

	lifetime := models.PremiumProfile{PremiumActive: true}
	require.True(t, lifetime.CurrentlyActive(time.Now()))

	inactive := models.PremiumProfile{PremiumActive: false, PremiumExpiresAt: &future}
	require.False(t, inactive.CurrentlyActive(time.Now()))
}
