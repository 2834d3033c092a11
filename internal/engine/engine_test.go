// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/diary"
	"github.com/mochibot/kokoro/internal/emotion"
	"github.com/mochibot/kokoro/internal/event"
	"github.com/mochibot/kokoro/internal/llm"
	"github.com/mochibot/kokoro/internal/quota"
	"github.com/mochibot/kokoro/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDay = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

func engineTables() *config.Tables {
	return &config.Tables{
		EventTypes: map[string]config.EventTypeConfig{
			"head_pat": {
				EventName: "head_pat", EventType: "touch",
				XChange: 2, YChange: config.YChangeRule{WhenXNegative: -1, WhenXNonNegative: 2},
				IntimacyChange: 1, Probability: 1,
				Weights: map[string]float64{"lively": 1.5, "calm": 0.8},
			},
			"rainy_day": {
				EventName: "rainy_day", EventType: "weather",
				XChange: -1, YChange: config.YChangeRule{WhenXNegative: -2, WhenXNonNegative: 1},
				Probability: 0,
				Weights:     map[string]float64{"lively": 1, "calm": 1},
			},
		},
		Fallback: config.FallbackTables{
			Events: map[string][]config.TemplateVariant{
				"head_pat": {
					{Title: "なでなで", Content: "あたまをなでられてうれしかった。", Tags: []string{"happy"}},
				},
				"rainy_day": {
					{Title: "あめ", Content: "きょうはずっとあめだった。", Tags: []string{"calm"}},
				},
			},
		},
		EmotionTags: []string{"happy", "calm", "excited"},
	}
}

// blockingGenerator waits for context cancellation, standing in for a
// slow LLM call.
type blockingGenerator struct{}

func (b *blockingGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type engineFixture struct {
	engine  *Engine
	db      *gorm.DB
	tracker *quota.Tracker
}

func setupEngine(t *testing.T, gen diary.Generator) *engineFixture {
	t.Helper()
	db, err := database.Connect(&config.DatabaseConfig{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kokoro.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))

	tables := engineTables()

	// min == max pins the drawn quota
	tracker, err := quota.NewTracker(db, 5, 5, rand.New(rand.NewSource(1)),
		func() time.Time { return testDay }, nil)
	require.NoError(t, err)

	matcher := trigger.NewSyncMatcher(trigger.NewGormContacts(db))
	evaluator := trigger.NewEvaluator(tables, tracker, matcher, rand.New(rand.NewSource(2)), nil)

	store := emotion.NewGormStore(db)
	_, err = store.Create("alice", database.RoleLively)
	require.NoError(t, err)
	ledger := emotion.NewLedger(store, nil)

	pipeline, err := diary.NewPipeline(tables, gen, time.Second, rand.New(rand.NewSource(3)), nil)
	require.NoError(t, err)

	eng := New(tables, evaluator, ledger, pipeline, db, nil, nil)
	t.Cleanup(func() { eng.Close(2 * time.Second) })
	return &engineFixture{engine: eng, db: db, tracker: tracker}
}

func TestProcess_EligibleEventCreatesDiary(t *testing.T) {
	fx := setupEngine(t, nil)

	ev := &event.Descriptor{EventType: "touch", EventName: "head_pat", PrincipalID: "alice", Timestamp: testDay}
	res, err := fx.engine.Process(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, res.Decision.Eligible)
	require.NotNil(t, res.Entry)

	// lively weight 1.5: x 0 -> 3, y 0 -> 3, intimacy unweighted
	assert.Equal(t, 3, res.Profile.XValue)
	assert.Equal(t, 3, res.Profile.YValue)
	assert.Equal(t, 1, res.Profile.Intimacy)

	// no generator configured: the template path serves the entry
	assert.Equal(t, diary.ProvenanceTemplate, res.Entry.Provenance)
	assert.Equal(t, "head_pat", res.Entry.EventName)
	assert.NotEmpty(t, res.Entry.EmotionTags)

	entries, err := fx.engine.ListDiaries(testDay)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Entry.ID, entries[0].ID)
}

func TestProcess_IneligibleReturnsNoEntry(t *testing.T) {
	fx := setupEngine(t, nil)

	ev := &event.Descriptor{EventType: "weather", EventName: "rainy_day", PrincipalID: "alice", Timestamp: testDay}
	res, err := fx.engine.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, res.Decision.Eligible)
	assert.Equal(t, trigger.ReasonRuleNotMet, res.Decision.Reason)
	assert.Nil(t, res.Entry)

	// ineligible events touch neither the ledger nor the quota
	assert.Equal(t, 0, res.Profile.XValue)
	ok, _, err := fx.tracker.Peek("weather")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := fx.engine.ListDiaries(testDay)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_UnknownEventName(t *testing.T) {
	fx := setupEngine(t, nil)

	ev := &event.Descriptor{EventType: "touch", EventName: "belly_rub", PrincipalID: "alice", Timestamp: testDay}
	res, err := fx.engine.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, res.Decision.Eligible)
	assert.Equal(t, trigger.ReasonUnknownEvent, res.Decision.Reason)
	assert.Nil(t, res.Entry)
}

func TestProcess_InvalidDescriptor(t *testing.T) {
	fx := setupEngine(t, nil)

	ev := &event.Descriptor{EventType: "touch", PrincipalID: "alice"}
	_, err := fx.engine.Process(context.Background(), ev)
	assert.ErrorIs(t, err, event.ErrInvalid)
}

func TestProcess_UnknownEntity(t *testing.T) {
	fx := setupEngine(t, nil)

	ev := &event.Descriptor{EventType: "touch", EventName: "head_pat", PrincipalID: "nobody", Timestamp: testDay}
	_, err := fx.engine.Process(context.Background(), ev)
	assert.ErrorIs(t, err, emotion.ErrNotFound)

	// the failed lookup must not have claimed the day's touch slot
	ok, _, err := fx.tracker.Peek("touch")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcess_SecondSameTypeSkipped(t *testing.T) {
	fx := setupEngine(t, nil)

	ev := &event.Descriptor{EventType: "touch", EventName: "head_pat", PrincipalID: "alice", Timestamp: testDay}
	res, err := fx.engine.Process(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, res.Entry)

	again := &event.Descriptor{EventType: "touch", EventName: "head_pat", PrincipalID: "alice", Timestamp: testDay}
	res, err = fx.engine.Process(context.Background(), again)
	require.NoError(t, err)
	assert.Nil(t, res.Entry)
	assert.Equal(t, quota.ReasonTypeCompleted, res.Decision.Reason)
}

func TestSubmitAndClose(t *testing.T) {
	fx := setupEngine(t, nil)

	fx.engine.Submit(&event.Descriptor{EventType: "touch", EventName: "head_pat", PrincipalID: "alice", Timestamp: testDay})
	require.NoError(t, fx.engine.Close(2*time.Second))

	entries, err := fx.engine.ListDiaries(testDay)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClose_AbandonsLLMCall(t *testing.T) {
	fx := setupEngine(t, &blockingGenerator{})

	fx.engine.Submit(&event.Descriptor{EventType: "touch", EventName: "head_pat", PrincipalID: "alice", Timestamp: testDay})

	// Close cancels the generation context; the blocked call returns and
	// the event completes on the fallback path before shutdown finishes.
	require.NoError(t, fx.engine.Close(3*time.Second))

	entries, err := fx.engine.ListDiaries(testDay)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, diary.ProvenanceFallback, entries[0].Provenance)
}
