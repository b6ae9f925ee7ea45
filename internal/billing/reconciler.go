package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/google/uuid"
)

var ErrOraclesUnavailable = errors.New("all billing oracles unavailable")

// Resolution is the merged premium decision across both billing systems.
type Resolution struct {
	Active    bool
	Source    string
	ExpiresAt *time.Time
	// Degraded marks a decision computed while one oracle was failing.
	// Degraded results are served but never cached.
	Degraded     bool
	Entitlements json.RawMessage
}

// Reconciler merges the Stripe subscription check and the RevenueCat
// entitlement check into a single premium decision and keeps the
// premium_profiles cache fresh as a side effect.
type Reconciler struct {
	subscriptions Oracle
	entitlements  Oracle
	profiles      *ProfileStore
}

func NewReconciler(subscriptions, entitlements Oracle, profiles *ProfileStore) *Reconciler {
	return &Reconciler{
		subscriptions: subscriptions,
		entitlements:  entitlements,
		profiles:      profiles,
	}
}

type oracleAnswer struct {
	result *OracleResult
	err    error
}

// ResolvePremium queries both oracles concurrently and OR-merges the
// answers. One oracle failing fails closed: the erroring side counts as
// inactive and the result is flagged degraded. Both failing propagates an
// error so the caller neither grants nor denies on silence.
func (r *Reconciler) ResolvePremium(userID uuid.UUID) (*Resolution, error) {
	id := userID.String()

	subCh := make(chan oracleAnswer, 1)
	entCh := make(chan oracleAnswer, 1)
	go func() {
		res, err := r.subscriptions.CheckActive(id)
		subCh <- oracleAnswer{result: res, err: err}
	}()
	go func() {
		res, err := r.entitlements.CheckActive(id)
		entCh <- oracleAnswer{result: res, err: err}
	}()
	sub := <-subCh
	ent := <-entCh

	if sub.err != nil && ent.err != nil {
		return nil, fmt.Errorf("%w: subscriptions: %v; entitlements: %v",
			ErrOraclesUnavailable, sub.err, ent.err)
	}

	res := &Resolution{Source: models.PremiumSourceNone}

	if sub.err != nil {
		slog.Warn("subscription oracle degraded, treating as inactive", "user_id", id, "error", sub.err)
		res.Degraded = true
	}
	if ent.err != nil {
		slog.Warn("entitlement oracle degraded, treating as inactive", "user_id", id, "error", ent.err)
		res.Degraded = true
	}

	// Stripe was checked first historically; it wins the source tie-break
	// when both authorities report active.
	switch {
	case sub.err == nil && sub.result.Active:
		res.Active = true
		res.Source = sub.result.Source
		res.ExpiresAt = sub.result.ExpiresAt
	case ent.err == nil && ent.result.Active:
		res.Active = true
		res.Source = ent.result.Source
		res.ExpiresAt = ent.result.ExpiresAt
	}

	if ent.err == nil && len(ent.result.Raw) > 0 {
		res.Entitlements = ent.result.Raw
	}

	// Cache refresh is fire-and-forget: a failed write must not block the
	// already-computed decision, and degraded decisions are never cached.
	if !res.Degraded && r.profiles != nil {
		go func(snapshot Resolution) {
			if err := r.profiles.Upsert(userID, &snapshot); err != nil {
				slog.Error("premium profile cache write failed", "user_id", id, "error", err)
			}
		}(*res)
	}

	return res, nil
}
