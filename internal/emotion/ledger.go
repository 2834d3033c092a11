// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package emotion

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
)

// MaxRetries is the number of attempts for a contended store write
const MaxRetries = 3

// RetryDelay is the delay between retries
const RetryDelay = 100 * time.Millisecond

// Ledger owns all emotion profile mutation. Reads and writes for one
// entity serialize through a per-entity mutex.
type Ledger struct {
	store  Store
	locks  *keyedMutex
	logger *slog.Logger
}

// NewLedger creates an emotion ledger over the given store
func NewLedger(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		locks:  newKeyedMutex(),
		logger: logger.With("component", "emotion"),
	}
}

// Get returns the current profile for an entity
func (l *Ledger) Get(entityID string) (*database.EmotionProfile, error) {
	return l.store.Get(entityID)
}

// ApplyDelta applies one event's emotion deltas to an entity and returns
// the updated profile.
//
// The y delta branch is chosen by the pre-update sign of x (x < 0 selects
// when_x_negative). The role weight multiplies the x and y deltas only;
// intimacy is added unweighted. Weighted deltas round half away from zero,
// then x and y clamp into [-30, 30].
//
// A nil cfg (event name with no type config) is a zero-effect no-op: the
// current profile is returned untouched.
func (l *Ledger) ApplyDelta(ctx context.Context, entityID string, cfg *config.EventTypeConfig) (*database.EmotionProfile, error) {
	lock := l.locks.get(entityID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := l.store.Get(entityID)
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		l.logger.Warn("no event type config, skipping delta", "entity", entityID)
		return profile, nil
	}

	yChange := cfg.YChange.WhenXNonNegative
	if profile.XValue < 0 {
		yChange = cfg.YChange.WhenXNegative
	}

	weight := roleWeight(cfg, profile.Role)
	dx := applyWeight(cfg.XChange, weight)
	dy := applyWeight(yChange, weight)

	targetX := Clamp(profile.XValue + dx)
	targetY := Clamp(profile.YValue + dy)

	var updated *database.EmotionProfile
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(RetryDelay):
			}
		}

		updated, err = l.store.Update(entityID,
			targetX-profile.XValue,
			targetY-profile.YValue,
			cfg.IntimacyChange)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		l.logger.Warn("emotion store write failed, retrying",
			"entity", entityID, "attempt", attempt+1, "error", err)
	}

	return nil, err
}

// roleWeight returns the multiplier for the profile's role, defaulting to 1
func roleWeight(cfg *config.EventTypeConfig, role database.Role) float64 {
	if w, ok := cfg.Weights[string(role)]; ok {
		return w
	}
	return 1.0
}

// applyWeight scales an integer delta, rounding half away from zero
func applyWeight(delta int, weight float64) int {
	return int(math.Round(float64(delta) * weight))
}
