package quota

import (
	"log/slog"

	"github.com/brightpages/storytime-backend/internal/billing"
	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
)

// Denial reasons surfaced to the client.
const (
	ReasonDailyLimit       = "DAILY_LIMIT"
	ReasonNotAuthenticated = "NOT_AUTHENTICATED"
)

// Decision is the outcome of a single quota check.
type Decision struct {
	CanGenerate bool   `json:"canGenerate"`
	Reason      string `json:"reason,omitempty"`
	Remaining   int    `json:"remaining"`
}

// PremiumResolver reports whether a user currently holds premium access.
type PremiumResolver interface {
	ResolvePremium(userID uuid.UUID) (*billing.Resolution, error)
}

// LimitsStore is the persistence surface the gate consumes.
type LimitsStore interface {
	GetOrCreate(userID uuid.UUID) (*models.UserLimits, error)
	ResetIfNewDay(limits *models.UserLimits) (*models.UserLimits, error)
	ConsumeDaily(userID uuid.UUID, max int) (bool, *models.UserLimits, error)
}

// LimitSettings supplies the runtime-tunable enforcement knobs.
type LimitSettings interface {
	DailyStoryLimit() int
	BypassLimits() bool
}

// Gate decides, per request, whether a user may generate another story.
// Premium users never touch the daily counter; free users pass through an
// atomic check-and-increment so concurrent requests cannot exceed the cap.
type Gate struct {
	resolver PremiumResolver
	store    LimitsStore
	settings LimitSettings
}

func NewGate(resolver PremiumResolver, store LimitsStore, settings LimitSettings) *Gate {
	return &Gate{resolver: resolver, store: store, settings: settings}
}

// CheckAndConsume runs the gate. A true decision for a free user has already
// spent one unit of today's quota; there is no separate confirm step.
func (g *Gate) CheckAndConsume(userID uuid.UUID) (*Decision, error) {
	if userID == uuid.Nil {
		return &Decision{CanGenerate: false, Reason: ReasonNotAuthenticated}, nil
	}

	if g.settings.BypassLimits() {
		slog.Warn("limit bypass enabled, skipping quota enforcement", "user_id", userID)
		return &Decision{CanGenerate: true, Remaining: 1}, nil
	}

	res, err := g.resolver.ResolvePremium(userID)
	if err != nil {
		// Both oracles down: surface the outage rather than guessing.
		return nil, err
	}
	if res.Active {
		return &Decision{CanGenerate: true, Remaining: 1}, nil
	}

	limits, err := g.store.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	limits, err = g.store.ResetIfNewDay(limits)
	if err != nil {
		return nil, err
	}

	max := g.settings.DailyStoryLimit()
	if limits.DailyStoriesUsed >= max {
		return &Decision{CanGenerate: false, Reason: ReasonDailyLimit, Remaining: 0}, nil
	}

	consumed, limits, err := g.store.ConsumeDaily(userID, max)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// Lost the race to a concurrent request on the last unit.
		return &Decision{CanGenerate: false, Reason: ReasonDailyLimit, Remaining: 0}, nil
	}

	remaining := max - limits.DailyStoriesUsed
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{CanGenerate: true, Remaining: remaining}, nil
}
