package billing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
)

// EntitlementAliases are the recognized premium entitlement identifiers,
// checked in this precedence order. The order is part of the contract.
var EntitlementAliases = []string{"premium", "premium_annual", "premium_monthly"}

// RevenueCatOracle answers the premium question from RevenueCat: the user is
// entitled when a recognized entitlement id has no expiry or an expiry
// strictly in the future. Native IAP identities are the app's own user id.
type RevenueCatOracle struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewRevenueCatOracle(apiKey, baseURL string, timeout time.Duration) *RevenueCatOracle {
	return &RevenueCatOracle{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type revenueCatEntitlement struct {
	ExpiresDate       *time.Time `json:"expires_date"`
	PurchaseDate      *time.Time `json:"purchase_date"`
	ProductIdentifier string     `json:"product_identifier"`
}

func (o *RevenueCatOracle) CheckActive(userID string) (*OracleResult, error) {
	endpoint := o.baseURL + "/subscribers/" + url.PathEscape(userID)
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("revenuecat request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("revenuecat unreachable: %w", err)
	}
	defer resp.Body.Close()

	// A subscriber RevenueCat has never seen is a free user, not an error.
	if resp.StatusCode == http.StatusNotFound {
		return &OracleResult{Active: false, Source: models.PremiumSourceNone}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("revenuecat returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Subscriber struct {
			Entitlements json.RawMessage `json:"entitlements"`
		} `json:"subscriber"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("revenuecat malformed response: %w", err)
	}

	entitlements := make(map[string]revenueCatEntitlement)
	if len(envelope.Subscriber.Entitlements) > 0 {
		if err := json.Unmarshal(envelope.Subscriber.Entitlements, &entitlements); err != nil {
			return nil, fmt.Errorf("revenuecat malformed entitlements: %w", err)
		}
	}

	now := time.Now()
	for _, alias := range EntitlementAliases {
		ent, ok := entitlements[alias]
		if !ok {
			continue
		}
		if ent.ExpiresDate == nil || ent.ExpiresDate.After(now) {
			return &OracleResult{
				Active:    true,
				Source:    models.PremiumSourceRevenueCat,
				ExpiresAt: ent.ExpiresDate,
				Raw:       envelope.Subscriber.Entitlements,
			}, nil
		}
	}

	return &OracleResult{
		Active: false,
		Source: models.PremiumSourceNone,
		Raw:    envelope.Subscriber.Entitlements,
	}, nil
}
