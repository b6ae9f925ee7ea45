package services

import (
	"testing"
	"time"

	"github.com/brightpages/storytime-backend/internal/billing"
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func premiumFixture(t *testing.T) (*PremiumService, *billing.ProfileStore) {
	db := openServicesTestDB(t, &models.User{}, &models.PremiumProfile{})
	profiles := billing.NewProfileStore(db)
	return NewPremiumService(db, profiles), profiles
}

func rcEvent(eventType string, userID uuid.UUID, store string, expiresAt time.Time) *dto.RevenueCatEvent {
	return &dto.RevenueCatEvent{
		Type:           eventType,
		ID:             uuid.NewString(),
		AppUserID:      userID.String(),
		Store:          store,
		ExpirationAtMs: expiresAt.UnixMilli(),
	}
}

func TestHandleRevenueCatEvent_PurchaseActivates(t *testing.T) {
	svc, profiles := premiumFixture(t)
	userID := uuid.New()
	expires := time.Now().Add(30 * 24 * time.Hour)

	err := svc.HandleRevenueCatEvent(rcEvent("INITIAL_PURCHASE", userID, "APP_STORE", expires))
	require.NoError(t, err)

	profile, err := profiles.Get(userID)
	require.NoError(t, err)
	assert.True(t, profile.PremiumActive)
	assert.Equal(t, models.PremiumSourceApple, profile.PremiumSource)
	require.NotNil(t, profile.PremiumExpiresAt)
	assert.Equal(t, expires.UnixMilli(), profile.PremiumExpiresAt.UnixMilli())
}

func TestHandleRevenueCatEvent_ExpirationDeactivates(t *testing.T) {
	svc, profiles := premiumFixture(t)
	userID := uuid.New()

	require.NoError(t, svc.HandleRevenueCatEvent(
		rcEvent("INITIAL_PURCHASE", userID, "PLAY_STORE", time.Now().Add(time.Hour))))
	require.NoError(t, svc.HandleRevenueCatEvent(
		rcEvent("EXPIRATION", userID, "PLAY_STORE", time.Now().Add(-time.Minute))))

	profile, err := profiles.Get(userID)
	require.NoError(t, err)
	assert.False(t, profile.PremiumActive)
}

func TestHandleRevenueCatEvent_CancellationKeepsAccess(t *testing.T) {
	// CANCELLATION only turns off auto-renew; the entitlement lives until
	// EXPIRATION arrives.
	svc, profiles := premiumFixture(t)
	userID := uuid.New()

	require.NoError(t, svc.HandleRevenueCatEvent(
		rcEvent("RENEWAL", userID, "APP_STORE", time.Now().Add(24*time.Hour))))
	require.NoError(t, svc.HandleRevenueCatEvent(
		rcEvent("CANCELLATION", userID, "APP_STORE", time.Now().Add(24*time.Hour))))

	profile, err := profiles.Get(userID)
	require.NoError(t, err)
	assert.True(t, profile.PremiumActive)
}

func TestHandleRevenueCatEvent_StoreMapping(t *testing.T) {
	cases := map[string]string{
		"APP_STORE":     models.PremiumSourceApple,
		"MAC_APP_STORE": models.PremiumSourceApple,
		"PLAY_STORE":    models.PremiumSourceGoogle,
		"PROMOTIONAL":   models.PremiumSourcePromo,
		"STRIPE":        models.PremiumSourceRevenueCat,
	}
	for store, want := range cases {
		t.Run(store, func(t *testing.T) {
			svc, profiles := premiumFixture(t)
			userID := uuid.New()
			require.NoError(t, svc.HandleRevenueCatEvent(
				rcEvent("INITIAL_PURCHASE", userID, store, time.Now().Add(time.Hour))))

			profile, err := profiles.Get(userID)
			require.NoError(t, err)
			assert.Equal(t, want, profile.PremiumSource)
		})
	}
}

func TestHandleRevenueCatEvent_BadUserID(t *testing.T) {
	svc, _ := premiumFixture(t)
	event := &dto.RevenueCatEvent{Type: "INITIAL_PURCHASE", AppUserID: "anonymous-device-id"}
	require.Error(t, svc.HandleRevenueCatEvent(event))
}

func TestHandleRevenueCatEvent_UnknownTypeIgnored(t *testing.T) {
	svc, profiles := premiumFixture(t)
	userID := uuid.New()
	require.NoError(t, svc.HandleRevenueCatEvent(
		rcEvent("TEST", userID, "APP_STORE", time.Now().Add(time.Hour))))

	_, err := profiles.Get(userID)
	require.Error(t, err, "unknown event types must not create profiles")
}

func TestActivateFromStripe(t *testing.T) {
	svc, profiles := premiumFixture(t)
	db := svc.db
	user := models.User{ID: uuid.New(), Email: "buyer@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, svc.ActivateFromStripe("buyer@example.com", nil))

	profile, err := profiles.Get(user.ID)
	require.NoError(t, err)
	assert.True(t, profile.PremiumActive)
	assert.Equal(t, models.PremiumSourceStripe, profile.PremiumSource)
	assert.Nil(t, profile.PremiumExpiresAt)

	require.NoError(t, svc.DeactivateFromStripe("buyer@example.com"))
	profile, err = profiles.Get(user.ID)
	require.NoError(t, err)
	assert.False(t, profile.PremiumActive)
}

func TestActivateFromStripe_UnknownEmail(t *testing.T) {
	svc, _ := premiumFixture(t)
	require.Error(t, svc.ActivateFromStripe("stranger@example.com", nil))
}
