package dto

import "encoding/json"

type SubscriptionCheckRequest struct {
	UserID string `json:"userId,omitempty"`
}

type SubscriptionCheckResponse struct {
	Subscribed bool `json:"subscribed"`
}

type EntitlementRefreshResponse struct {
	Entitlements json.RawMessage `json:"entitlements"`
	Active       bool            `json:"active"`
	Source       string          `json:"source"`
	ExpiresAt    *string         `json:"expires_at,omitempty"`
	Degraded     bool            `json:"degraded,omitempty"`
}
