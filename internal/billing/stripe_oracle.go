package billing

import (
	"fmt"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"gorm.io/gorm"
)

// EmailResolver maps an app user id to the email Stripe customers are keyed
// by. The identity provider is external to billing.
type EmailResolver interface {
	EmailForUser(userID string) (string, error)
}

// GormEmailResolver resolves emails from the local users table.
type GormEmailResolver struct {
	db *gorm.DB
}

func NewGormEmailResolver(db *gorm.DB) *GormEmailResolver {
	return &GormEmailResolver{db: db}
}

func (r *GormEmailResolver) EmailForUser(userID string) (string, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("failed to resolve user email: %w", err)
	}
	return user.Email, nil
}

// StripeOracle answers the premium question from Stripe: the user is
// subscribed when any subscription in status active or trialing exists for
// the configured price, or when a qualifying one-time payment at or above
// the configured minimum was made (lifetime-purchase fallback).
type StripeOracle struct {
	api        *client.API
	emails     EmailResolver
	priceID    string
	oneTimeMin int64
}

// NewClient builds the Stripe API client shared by the oracle and the
// webhook handler. No package-global key: the client is injected.
func NewClient(secretKey string) *client.API {
	api := &client.API{}
	api.Init(secretKey, nil)
	return api
}

func NewStripeOracle(api *client.API, emails EmailResolver, priceID string, oneTimeMinCents int64) *StripeOracle {
	return &StripeOracle{
		api:        api,
		emails:     emails,
		priceID:    priceID,
		oneTimeMin: oneTimeMinCents,
	}
}

func (o *StripeOracle) CheckActive(userID string) (*OracleResult, error) {
	email, err := o.emails.EmailForUser(userID)
	if err != nil {
		return nil, err
	}

	inactive := &OracleResult{Active: false, Source: models.PremiumSourceNone}

	custIter := o.api.Customers.List(&stripe.CustomerListParams{
		Email: stripe.String(email),
	})
	for custIter.Next() {
		cust := custIter.Customer()

		result, err := o.checkSubscriptions(cust.ID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		result, err = o.checkOneTimePayments(cust.ID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	if err := custIter.Err(); err != nil {
		return nil, fmt.Errorf("stripe customer lookup failed: %w", err)
	}

	// No customer for this email is the normal state for a free user.
	return inactive, nil
}

func (o *StripeOracle) checkSubscriptions(customerID string) (*OracleResult, error) {
	subIter := o.api.Subscriptions.List(&stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	})
	for subIter.Next() {
		sub := subIter.Subscription()
		if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
			continue
		}
		if sub.Items == nil {
			continue
		}
		for _, item := range sub.Items.Data {
			if item.Price == nil || item.Price.ID != o.priceID {
				continue
			}
			var expires *time.Time
			if item.CurrentPeriodEnd > 0 {
				t := time.Unix(item.CurrentPeriodEnd, 0)
				expires = &t
			}
			return &OracleResult{
				Active:    true,
				Source:    models.PremiumSourceStripe,
				ExpiresAt: expires,
			}, nil
		}
	}
	if err := subIter.Err(); err != nil {
		return nil, fmt.Errorf("stripe subscription lookup failed: %w", err)
	}
	return nil, nil
}

func (o *StripeOracle) checkOneTimePayments(customerID string) (*OracleResult, error) {
	if o.oneTimeMin <= 0 {
		return nil, nil
	}
	piIter := o.api.PaymentIntents.List(&stripe.PaymentIntentListParams{
		Customer: stripe.String(customerID),
	})
	for piIter.Next() {
		pi := piIter.PaymentIntent()
		if pi.Status == stripe.PaymentIntentStatusSucceeded && pi.Amount >= o.oneTimeMin {
			// Lifetime purchase: no expiry.
			return &OracleResult{
				Active: true,
				Source: models.PremiumSourceStripe,
			}, nil
		}
	}
	if err := piIter.Err(); err != nil {
		return nil, fmt.Errorf("stripe payment lookup failed: %w", err)
	}
	return nil, nil
}
