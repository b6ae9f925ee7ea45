package billing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/stretchr/testify/require"
)

func newRevenueCatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestRevenueCat_EntitledWithoutExpiry(t *testing.T) {
	srv := newRevenueCatServer(t, http.StatusOK,
		`{"subscriber":{"entitlements":{"premium":{"expires_date":null,"product_identifier":"lifetime"}}}}`)
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.NoError(t, err)
	require.True(t, res.Active)
	require.Equal(t, models.PremiumSourceRevenueCat, res.Source)
	require.Nil(t, res.ExpiresAt)
	require.NotEmpty(t, res.Raw)
}

func TestRevenueCat_EntitledWithFutureExpiry(t *testing.T) {
	expires := time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)
	srv := newRevenueCatServer(t, http.StatusOK,
		fmt.Sprintf(`{"subscriber":{"entitlements":{"premium_monthly":{"expires_date":%q}}}}`, expires))
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.NoError(t, err)
	require.True(t, res.Active)
	require.NotNil(t, res.ExpiresAt)
}

func TestRevenueCat_ExpiredEntitlementInactive(t *testing.T) {
	expired := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	srv := newRevenueCatServer(t, http.StatusOK,
		fmt.Sprintf(`{"subscriber":{"entitlements":{"premium":{"expires_date":%q}}}}`, expired))
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.NoError(t, err)
	require.False(t, res.Active)
	require.Equal(t, models.PremiumSourceNone, res.Source)
}

func TestRevenueCat_AliasPrecedence(t *testing.T) {
	// "premium" expired, "premium_annual" still valid: the ordered alias walk
	// must find the valid one.
	expired := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	srv := newRevenueCatServer(t, http.StatusOK, fmt.Sprintf(
		`{"subscriber":{"entitlements":{"premium":{"expires_date":%q},"premium_annual":{"expires_date":%q}}}}`,
		expired, future))
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.NoError(t, err)
	require.True(t, res.Active)
}

func TestRevenueCat_UnrecognizedEntitlementIgnored(t *testing.T) {
	srv := newRevenueCatServer(t, http.StatusOK,
		`{"subscriber":{"entitlements":{"gold_tier":{"expires_date":null}}}}`)
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.NoError(t, err)
	require.False(t, res.Active)
}

func TestRevenueCat_UnknownSubscriberIsFree(t *testing.T) {
	srv := newRevenueCatServer(t, http.StatusNotFound, `{"error":"not found"}`)
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.NoError(t, err)
	require.False(t, res.Active)
}

func TestRevenueCat_ServerErrorPropagates(t *testing.T) {
	srv := newRevenueCatServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	defer srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	res, err := oracle.CheckActive("user-1")
	require.Error(t, err)
	require.Nil(t, res)
}

func TestRevenueCat_Unreachable(t *testing.T) {
	srv := newRevenueCatServer(t, http.StatusOK, `{}`)
	srv.Close()

	oracle := NewRevenueCatOracle("test-key", srv.URL, time.Second)
	_, err := oracle.CheckActive("user-1")
	require.Error(t, err)
}
