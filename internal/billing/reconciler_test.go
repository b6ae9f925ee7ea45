package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	result *OracleResult
	err    error
}

func (f *fakeOracle) CheckActive(userID string) (*OracleResult, error) {
	return f.result, f.err
}

func inactiveOracle() *fakeOracle {
	return &fakeOracle{result: &OracleResult{Active: false, Source: models.PremiumSourceNone}}
}

func TestResolvePremium_BothInactive(t *testing.T) {
	r := NewReconciler(inactiveOracle(), inactiveOracle(), nil)

	res, err := r.ResolvePremium(uuid.New())
	require.NoError(t, err)
	require.False(t, res.Active)
	require.Equal(t, models.PremiumSourceNone, res.Source)
	require.False(t, res.Degraded)
}

func TestResolvePremium_EitherActiveGrants(t *testing.T) {
	expires := time.Now().Add(30 * 24 * time.Hour)

	t.Run("stripe only", func(t *testing.T) {
		sub := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceStripe, ExpiresAt: &expires}}
		r := NewReconciler(sub, inactiveOracle(), nil)

		res, err := r.ResolvePremium(uuid.New())
		require.NoError(t, err)
		require.True(t, res.Active)
		require.Equal(t, models.PremiumSourceStripe, res.Source)
		require.Equal(t, expires.Unix(), res.ExpiresAt.Unix())
	})

	t.Run("revenuecat only", func(t *testing.T) {
		ent := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceRevenueCat, ExpiresAt: &expires}}
		r := NewReconciler(inactiveOracle(), ent, nil)

		res, err := r.ResolvePremium(uuid.New())
		require.NoError(t, err)
		require.True(t, res.Active)
		require.Equal(t, models.PremiumSourceRevenueCat, res.Source)
	})
}

func TestResolvePremium_StripeWinsSourceTieBreak(t *testing.T) {
	sub := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceStripe}}
	ent := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceRevenueCat}}
	r := NewReconciler(sub, ent, nil)

	res, err := r.ResolvePremium(uuid.New())
	require.NoError(t, err)
	require.True(t, res.Active)
	require.Equal(t, models.PremiumSourceStripe, res.Source)
}

func TestResolvePremium_OneOracleDownFailsClosed(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour)
	down := &fakeOracle{err: errors.New("gateway timeout")}

	t.Run("subscriptions down, entitled elsewhere", func(t *testing.T) {
		ent := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceRevenueCat, ExpiresAt: &expires}}
		r := NewReconciler(down, ent, nil)

		res, err := r.ResolvePremium(uuid.New())
		require.NoError(t, err)
		require.True(t, res.Active)
		require.True(t, res.Degraded)
	})

	t.Run("entitlements down, free user", func(t *testing.T) {
		r := NewReconciler(inactiveOracle(), down, nil)

		res, err := r.ResolvePremium(uuid.New())
		require.NoError(t, err)
		require.False(t, res.Active, "erroring oracle must count as inactive, never active")
		require.True(t, res.Degraded)
	})
}

func TestResolvePremium_BothOraclesDown(t *testing.T) {
	down := &fakeOracle{err: errors.New("unreachable")}
	r := NewReconciler(down, down, nil)

	res, err := r.ResolvePremium(uuid.New())
	require.ErrorIs(t, err, ErrOraclesUnavailable)
	require.Nil(t, res)
}

func TestResolvePremium_EntitlementSnapshotCarried(t *testing.T) {
	raw := []byte(`{"premium":{"expires_date":null}}`)
	ent := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceRevenueCat, Raw: raw}}
	r := NewReconciler(inactiveOracle(), ent, nil)

	res, err := r.ResolvePremium(uuid.New())
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(res.Entitlements))
}

func TestResolvePremium_FreshDecisionCached(t *testing.T) {
	db := openBillingTestDB(t)
	profiles := NewProfileStore(db)
	expires := time.Now().Add(24 * time.Hour)
	sub := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceStripe, ExpiresAt: &expires}}
	r := NewReconciler(sub, inactiveOracle(), profiles)
	userID := uuid.New()

	_, err := r.ResolvePremium(userID)
	require.NoError(t, err)

	// The cache write is asynchronous.
	require.Eventually(t, func() bool {
		profile, err := profiles.Get(userID)
		return err == nil && profile.PremiumActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResolvePremium_DegradedDecisionNeverCached(t *testing.T) {
	db := openBillingTestDB(t)
	profiles := NewProfileStore(db)
	down := &fakeOracle{err: errors.New("gateway timeout")}
	ent := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceRevenueCat}}
	r := NewReconciler(down, ent, profiles)
	userID := uuid.New()

	res, err := r.ResolvePremium(userID)
	require.NoError(t, err)
	require.True(t, res.Degraded)

	require.Never(t, func() bool {
		_, err := profiles.Get(userID)
		return err == nil
	}, 300*time.Millisecond, 25*time.Millisecond)
}

func TestResolvePremium_CacheWriteFailureDoesNotAffectDecision(t *testing.T) {
	db := openBillingTestDB(t)
	// Drop the table so the async upsert fails.
	require.NoError(t, db.Migrator().DropTable(&models.PremiumProfile{}))
	profiles := NewProfileStore(db)
	sub := &fakeOracle{result: &OracleResult{Active: true, Source: models.PremiumSourceStripe}}
	r := NewReconciler(sub, inactiveOracle(), profiles)

	res, err := r.ResolvePremium(uuid.New())
	require.NoError(t, err)
	require.True(t, res.Active)
}
