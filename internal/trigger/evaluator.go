// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package trigger

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/event"
	"github.com/mochibot/kokoro/internal/quota"
)

// Rejection reasons
const (
	ReasonUnknownEvent   = "unknown event name"
	ReasonRuleNotMet     = "trigger rule not met"
	ReasonNoMatchingRule = "no matching trigger rule"
	ReasonAwaitingSync   = "awaiting synchronization partner"
	ReasonPoorSync       = "synchronization window missed"
	ReasonNoSyncLabel    = "synchronization event without label"
)

// Decision is the outcome of trigger evaluation. An ineligible decision is
// a normal outcome, not an error. When Eligible is true the day's quota
// slot has already been reserved.
type Decision struct {
	Eligible bool
	Reason   string
	Sync     *SyncMatch
}

// Evaluator decides event eligibility from static rules, the daily quota
// and synchronization detection.
type Evaluator struct {
	tables  *config.Tables
	quota   *quota.Tracker
	matcher *SyncMatcher
	logger  *slog.Logger

	// rand.Rand is not safe for concurrent use
	rngMu sync.Mutex
	rng   *rand.Rand

	rulesMu  sync.RWMutex
	disabled map[string]bool // condition_id -> disabled at runtime
}

// NewEvaluator creates a trigger evaluator. rng is injectable; nil selects
// a time-seeded source.
func NewEvaluator(tables *config.Tables, tracker *quota.Tracker, matcher *SyncMatcher, rng *rand.Rand, logger *slog.Logger) *Evaluator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		tables:   tables,
		quota:    tracker,
		matcher:  matcher,
		logger:   logger.With("component", "trigger"),
		rng:      rng,
		disabled: make(map[string]bool),
	}
}

// SetRuleEnabled toggles a rule at runtime. Rule identity is fixed; only
// the enabled flag moves.
func (e *Evaluator) SetRuleEnabled(conditionID string, enabled bool) error {
	for _, r := range e.tables.TriggerRules {
		if r.ConditionID == conditionID {
			e.rulesMu.Lock()
			e.disabled[conditionID] = !enabled
			e.rulesMu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("unknown condition_id '%s'", conditionID)
}

func (e *Evaluator) ruleEnabled(r *config.TriggerRule) bool {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	if e.disabled[r.ConditionID] {
		return false
	}
	return r.Enabled
}

// Evaluate runs the eligibility pipeline for one event. On an eligible
// decision the quota slot is reserved before returning; it is never
// refunded afterwards, because content generation cannot fail.
func (e *Evaluator) Evaluate(ev *event.Descriptor) (Decision, error) {
	cfg := e.tables.EventTypeByName(ev.EventName)
	if cfg == nil {
		return Decision{Reason: ReasonUnknownEvent}, nil
	}

	// 1. Claimed events skip probability gating entirely.
	if !e.isClaimed(ev.EventType) {
		if d, ok := e.passesRules(ev, cfg); !ok {
			return d, nil
		}
	}

	// 2. Synchronization eligibility must be confirmed before any quota
	// reservation; a lone occurrence reserves nothing.
	var match *SyncMatch
	if cfg.Synchronization {
		label := ev.Label()
		if label == "" {
			return Decision{Reason: ReasonNoSyncLabel}, nil
		}
		var err error
		match, err = e.matcher.Observe(ev.PrincipalID, label, ev.Timestamp)
		if err != nil {
			return Decision{}, err
		}
		if match == nil {
			return Decision{Reason: ReasonAwaitingSync}, nil
		}
		if match.Tier == TierPoor {
			return Decision{Reason: ReasonPoorSync}, nil
		}
	}

	// 3. Reserve the quota slot.
	ok, reason, err := e.quota.TryReserve(ev.EventType)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Reason: reason}, nil
	}

	return Decision{Eligible: true, Sync: match}, nil
}

// isClaimed reports whether an enabled claimed rule covers the event type
func (e *Evaluator) isClaimed(eventType string) bool {
	for i := range e.tables.TriggerRules {
		r := &e.tables.TriggerRules[i]
		if r.Kind == config.RuleClaimed && r.AppliesTo(eventType) && e.ruleEnabled(r) {
			return true
		}
	}
	return false
}

// passesRules evaluates the matching non-claimed rules. Every matching
// enabled rule must pass. When no rule covers the event type, the event
// type's own trigger probability gates it.
func (e *Evaluator) passesRules(ev *event.Descriptor, cfg *config.EventTypeConfig) (Decision, bool) {
	matched := false
	for i := range e.tables.TriggerRules {
		r := &e.tables.TriggerRules[i]
		if r.Kind == config.RuleClaimed || !r.AppliesTo(ev.EventType) {
			continue
		}
		if !e.ruleEnabled(r) {
			// A disabled rule never passes.
			return Decision{Reason: ReasonRuleNotMet}, false
		}
		matched = true

		switch r.Kind {
		case config.RuleProbability:
			if e.draw() >= *r.Probability {
				return Decision{Reason: ReasonRuleNotMet}, false
			}
		case config.RuleTimeWindow:
			if !inWindow(ev.Timestamp, r.StartTime, r.EndTime) {
				return Decision{Reason: ReasonRuleNotMet}, false
			}
		}
	}

	if !matched {
		if e.draw() < cfg.Probability {
			return Decision{}, true
		}
		return Decision{Reason: ReasonNoMatchingRule}, false
	}
	return Decision{}, true
}

func (e *Evaluator) draw() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

// inWindow reports whether the event's local time-of-day falls in
// [start, end). Table validation guarantees the clock strings parse.
func inWindow(ts time.Time, start, end string) bool {
	startD, err := config.ParseClock(start)
	if err != nil {
		return false
	}
	endD, err := config.ParseClock(end)
	if err != nil {
		return false
	}

	tod := time.Duration(ts.Hour())*time.Hour +
		time.Duration(ts.Minute())*time.Minute +
		time.Duration(ts.Second())*time.Second

	if startD <= endD {
		return tod >= startD && tod < endD
	}
	// Window crosses midnight.
	return tod >= startD || tod < endD
}
