// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package trigger

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/event"
	"github.com/mochibot/kokoro/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(&config.DatabaseConfig{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kokoro.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))
	return db
}

func floatPtr(f float64) *float64 { return &f }

// testTables builds reference tables in memory. Probabilities of 1 and 0
// make rule outcomes deterministic regardless of the rand source.
func testTables() *config.Tables {
	return &config.Tables{
		EventTypes: map[string]config.EventTypeConfig{
			"head_pat": {
				EventName: "head_pat", EventType: "touch",
				XChange: 1, IntimacyChange: 2, Probability: 1.0,
				Weights: map[string]float64{"lively": 1.0, "calm": 1.0},
			},
			"rainy_day": {
				EventName: "rainy_day", EventType: "weather",
				XChange: -1, Probability: 1.0,
				Weights: map[string]float64{"lively": 1.0, "calm": 1.0},
			},
			"lucky_find": {
				EventName: "lucky_find", EventType: "lucky",
				XChange: 2, Probability: 1.0,
				Weights: map[string]float64{"lively": 1.0, "calm": 1.0},
			},
			"walk_together": {
				EventName: "walk_together", EventType: "sync",
				XChange: 2, IntimacyChange: 3, Probability: 1.0,
				Weights:         map[string]float64{"lively": 1.0, "calm": 1.0},
				Synchronization: true,
			},
		},
		TriggerRules: []config.TriggerRule{
			{ConditionID: "touch-always", Kind: config.RuleProbability,
				EventTypes: []string{"touch"}, Probability: floatPtr(1.0), Enabled: true},
			{ConditionID: "weather-night", Kind: config.RuleTimeWindow,
				EventTypes: []string{"weather"}, StartTime: "21:00", EndTime: "23:00", Enabled: true},
			{ConditionID: "sync-claimed", Kind: config.RuleClaimed,
				EventTypes: []string{"sync"}, Enabled: true},
		},
		EmotionTags: []string{"happy", "calm", "excited"},
	}
}

func newTestEvaluator(t *testing.T, tables *config.Tables, totalQuota int, contacts ContactRegistry) *Evaluator {
	t.Helper()
	db := setupDB(t)
	clock := func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	tracker, err := quota.NewTracker(db, totalQuota, totalQuota, nil, clock, nil)
	require.NoError(t, err)

	if contacts == nil {
		contacts = newMemContacts()
	}
	return NewEvaluator(tables, tracker, NewSyncMatcher(contacts), rand.New(rand.NewSource(42)), nil)
}

func descriptor(name, typ, principal string, ts time.Time) *event.Descriptor {
	return &event.Descriptor{
		EventID:     "ev-" + name,
		EventType:   typ,
		EventName:   name,
		Timestamp:   ts,
		PrincipalID: principal,
	}
}

func TestEvaluate_UnknownEventName(t *testing.T) {
	e := newTestEvaluator(t, testTables(), 5, nil)

	d, err := e.Evaluate(descriptor("mystery", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonUnknownEvent, d.Reason)
}

func TestEvaluate_ProbabilityRulePasses(t *testing.T) {
	e := newTestEvaluator(t, testTables(), 5, nil)

	d, err := e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.True(t, d.Eligible)
	assert.Nil(t, d.Sync)
}

func TestEvaluate_ProbabilityRuleZeroNeverPasses(t *testing.T) {
	tables := testTables()
	tables.TriggerRules[0].Probability = floatPtr(0.0)
	e := newTestEvaluator(t, tables, 5, nil)

	d, err := e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonRuleNotMet, d.Reason)
}

func TestEvaluate_DisabledRuleNeverPasses(t *testing.T) {
	tables := testTables()
	tables.TriggerRules[0].Enabled = false
	e := newTestEvaluator(t, tables, 5, nil)

	d, err := e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonRuleNotMet, d.Reason)
}

func TestEvaluate_SetRuleEnabledAtRuntime(t *testing.T) {
	e := newTestEvaluator(t, testTables(), 5, nil)
	require.NoError(t, e.SetRuleEnabled("touch-always", false))

	d, err := e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)

	require.NoError(t, e.SetRuleEnabled("touch-always", true))
	d, err = e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.True(t, d.Eligible)

	assert.Error(t, e.SetRuleEnabled("no-such-rule", true))
}

func TestEvaluate_TimeWindow(t *testing.T) {
	e := newTestEvaluator(t, testTables(), 5, nil)

	inside := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)
	d, err := e.Evaluate(descriptor("rainy_day", "weather", "alice", inside))
	require.NoError(t, err)
	assert.True(t, d.Eligible)

	// end is exclusive
	e2 := newTestEvaluator(t, testTables(), 5, nil)
	boundary := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	d, err = e2.Evaluate(descriptor("rainy_day", "weather", "alice", boundary))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonRuleNotMet, d.Reason)

	outside := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d, err = e2.Evaluate(descriptor("rainy_day", "weather", "alice", outside))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
}

func TestEvaluate_NoMatchingRuleFallsBackToEventProbability(t *testing.T) {
	tables := testTables()
	e := newTestEvaluator(t, tables, 5, nil)

	// "lucky" has no rule; its own probability (1.0) gates it.
	d, err := e.Evaluate(descriptor("lucky_find", "lucky", "alice", time.Now()))
	require.NoError(t, err)
	assert.True(t, d.Eligible)

	tables2 := testTables()
	cfg := tables2.EventTypes["lucky_find"]
	cfg.Probability = 0.0
	tables2.EventTypes["lucky_find"] = cfg
	e2 := newTestEvaluator(t, tables2, 5, nil)

	d, err = e2.Evaluate(descriptor("lucky_find", "lucky", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonNoMatchingRule, d.Reason)
}

func TestEvaluate_QuotaExhaustedAndPerTypeLimit(t *testing.T) {
	e := newTestEvaluator(t, testTables(), 2, nil)

	d, err := e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.True(t, d.Eligible)

	// Same type again: one diary per type per day.
	d, err = e.Evaluate(descriptor("head_pat", "touch", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, quota.ReasonTypeCompleted, d.Reason)

	inside := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)
	d, err = e.Evaluate(descriptor("rainy_day", "weather", "alice", inside))
	require.NoError(t, err)
	assert.True(t, d.Eligible)

	// Budget of 2 is now spent.
	d, err = e.Evaluate(descriptor("lucky_find", "lucky", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, quota.ReasonExhausted, d.Reason)
}

func TestEvaluate_ClaimedSkipsProbabilityButNotQuota(t *testing.T) {
	// The sync type is claimed; make its partner matching trivial by using
	// a plain (non-synchronization) claimed type instead.
	tables := testTables()
	tables.EventTypes["nap_time"] = config.EventTypeConfig{
		EventName: "nap_time", EventType: "sync",
		Probability: 0.0, // would never pass a probability gate
		Weights:     map[string]float64{"lively": 1.0, "calm": 1.0},
	}
	e := newTestEvaluator(t, tables, 1, nil)

	d, err := e.Evaluate(descriptor("nap_time", "sync", "alice", time.Now()))
	require.NoError(t, err)
	assert.True(t, d.Eligible, "claimed event skips probability")

	// Quota still binds claimed events.
	d, err = e.Evaluate(descriptor("nap_time", "sync", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
}

func TestEvaluate_SyncLifecycle(t *testing.T) {
	contacts := newMemContacts([2]string{"alice", "bob"})
	e := newTestEvaluator(t, testTables(), 5, contacts)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev1 := descriptor("walk_together", "sync", "alice", base)
	ev1.Payload = map[string]interface{}{event.PayloadLabelKey: "walk"}

	// Lone occurrence: parked, no quota reserved.
	d, err := e.Evaluate(ev1)
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonAwaitingSync, d.Reason)

	ok, _, err := e.quota.Peek("sync")
	require.NoError(t, err)
	assert.True(t, ok, "no speculative reservation for a pending sync")

	// Partner arrives 2.5s later: good tier, quota reserved.
	ev2 := descriptor("walk_together", "sync", "bob", base.Add(2500*time.Millisecond))
	ev2.Payload = map[string]interface{}{event.PayloadLabelKey: "walk"}

	d, err = e.Evaluate(ev2)
	require.NoError(t, err)
	assert.True(t, d.Eligible)
	require.NotNil(t, d.Sync)
	assert.Equal(t, TierGood, d.Sync.Tier)
	assert.Equal(t, "alice", d.Sync.PartnerPrincipal)
}

func TestEvaluate_SyncWithoutLabel(t *testing.T) {
	e := newTestEvaluator(t, testTables(), 5, newMemContacts([2]string{"alice", "bob"}))

	d, err := e.Evaluate(descriptor("walk_together", "sync", "alice", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonNoSyncLabel, d.Reason)
}

func TestGormContacts(t *testing.T) {
	db := setupDB(t)
	contacts := NewGormContacts(db)

	ok, err := contacts.AreContacts("alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, contacts.Add("bob", "alice"))
	// Idempotent, order-insensitive.
	require.NoError(t, contacts.Add("alice", "bob"))

	ok, err = contacts.AreContacts("alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = contacts.AreContacts("bob", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, contacts.Add("alice", "alice"))
	ok, err = contacts.AreContacts("alice", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}
