// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventTypes = `
- event_name: head_pat
  event_type: touch
  x_change: 1
  y_change:
    when_x_negative: -1
    when_x_nonnegative: 1
  intimacy_change: 2
  probability: 0.5
  weights:
    lively: 1.5
    calm: 0.8
- event_name: walk_together
  event_type: sync
  x_change: 2
  y_change:
    when_x_negative: 0
    when_x_nonnegative: 2
  intimacy_change: 3
  probability: 1.0
  weights:
    lively: 1.0
    calm: 1.0
  synchronization: true
`

const testTriggerRules = `
- condition_id: touch-prob
  kind: probability
  event_types: [touch]
  probability: 0.5
  enabled: true
- condition_id: night-window
  kind: time_window
  event_types: [weather]
  start_time: "21:00"
  end_time: "23:30"
  enabled: true
- condition_id: sync-claimed
  kind: claimed
  event_types: [sync]
  enabled: true
`

const testFallback = `
events:
  head_pat:
    - title: "なでなで"
      content: "あたまをなでてもらった。うれしい。"
      tags: [happy]
    - title: "ぽんぽん"
      content: "やさしくされた気がする。"
      tags: [happy, calm]
sync:
  perfect:
    lively: [{title: "ぴったり", content: "きもちがかさなった!", tags: [excited]}]
    calm: [{title: "しずかに", content: "おなじときをすごした。", tags: [calm]}]
  excellent:
    lively: [{title: "いっしょ", content: "ほとんどおなじだった!", tags: [excited]}]
    calm: [{title: "ふたりで", content: "こころがちかい。", tags: [calm]}]
  good:
    lively: [{title: "いいね", content: "タイミングがあった。", tags: [happy]}]
    calm: [{title: "そっと", content: "すこしうれしい。", tags: [happy]}]
  acceptable:
    lively: [{title: "まあまあ", content: "ちょっとずれたけどいいか。", tags: [happy]}]
    calm: [{title: "のんびり", content: "それぞれのペースで。", tags: [calm]}]
tier_tags:
  perfect: [excited, happy]
  excellent: [excited]
  good: [happy]
  acceptable: [happy]
`

const testEmotionTags = `[happy, calm, excited, lonely, curious]`

func writeTestTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		EventTypesFile:   testEventTypes,
		TriggerRulesFile: testTriggerRules,
		FallbackFile:     testFallback,
		EmotionTagsFile:  testEmotionTags,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func overwriteTable(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoadTables(t *testing.T) {
	dir := writeTestTables(t)

	tables, err := LoadTables(dir)
	require.NoError(t, err)

	require.Len(t, tables.EventTypes, 2)
	headPat := tables.EventTypeByName("head_pat")
	require.NotNil(t, headPat)
	assert.Equal(t, "touch", headPat.EventType)
	assert.Equal(t, 1, headPat.XChange)
	assert.Equal(t, -1, headPat.YChange.WhenXNegative)
	assert.Equal(t, 1, headPat.YChange.WhenXNonNegative)
	assert.Equal(t, 2, headPat.IntimacyChange)
	assert.Equal(t, 1.5, headPat.Weights["lively"])
	assert.False(t, headPat.Synchronization)

	sync := tables.EventTypeByName("walk_together")
	require.NotNil(t, sync)
	assert.True(t, sync.Synchronization)

	assert.Nil(t, tables.EventTypeByName("no_such_event"))

	require.Len(t, tables.TriggerRules, 3)
	assert.True(t, tables.TriggerRules[0].AppliesTo("touch"))
	assert.False(t, tables.TriggerRules[0].AppliesTo("weather"))

	assert.True(t, tables.IsKnownTag("happy"))
	assert.False(t, tables.IsKnownTag("ecstatic"))
}

func TestLoadTables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "probability outside range",
			file: EventTypesFile,
			body: `
- event_name: head_pat
  event_type: touch
  probability: 1.5
  weights: {lively: 1.0}
`,
		},
		{
			name: "unknown role in weights",
			file: EventTypesFile,
			body: `
- event_name: head_pat
  event_type: touch
  probability: 0.5
  weights: {grumpy: 1.0}
`,
		},
		{
			name: "duplicate event name",
			file: EventTypesFile,
			body: `
- event_name: head_pat
  event_type: touch
  probability: 0.5
- event_name: head_pat
  event_type: touch
  probability: 0.5
`,
		},
		{
			name: "duplicate condition id",
			file: TriggerRulesFile,
			body: `
- condition_id: dup
  kind: claimed
  event_types: [touch]
  enabled: true
- condition_id: dup
  kind: claimed
  event_types: [sync]
  enabled: true
`,
		},
		{
			name: "unknown rule kind",
			file: TriggerRulesFile,
			body: `
- condition_id: bad
  kind: lunar_phase
  event_types: [touch]
  enabled: true
`,
		},
		{
			name: "probability rule without probability",
			file: TriggerRulesFile,
			body: `
- condition_id: bad
  kind: probability
  event_types: [touch]
  enabled: true
`,
		},
		{
			name: "time window with bad clock",
			file: TriggerRulesFile,
			body: `
- condition_id: bad
  kind: time_window
  event_types: [touch]
  start_time: "25:99"
  end_time: "23:00"
  enabled: true
`,
		},
		{
			name: "empty tag enumeration",
			file: EmotionTagsFile,
			body: `[]`,
		},
		{
			name: "fallback uses unknown tag",
			file: FallbackFile,
			body: `
events:
  head_pat:
    - {title: "x", content: "y", tags: [rage]}
sync:
  perfect: {lively: [{title: a, content: b, tags: [happy]}], calm: [{title: a, content: b, tags: [happy]}]}
  excellent: {lively: [{title: a, content: b, tags: [happy]}], calm: [{title: a, content: b, tags: [happy]}]}
  good: {lively: [{title: a, content: b, tags: [happy]}], calm: [{title: a, content: b, tags: [happy]}]}
  acceptable: {lively: [{title: a, content: b, tags: [happy]}], calm: [{title: a, content: b, tags: [happy]}]}
tier_tags:
  perfect: [happy]
  excellent: [happy]
  good: [happy]
  acceptable: [happy]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTestTables(t)
			overwriteTable(t, dir, tt.file, tt.body)
			_, err := LoadTables(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoadTables_MissingFallbackForEvent(t *testing.T) {
	dir := writeTestTables(t)
	overwriteTable(t, dir, EventTypesFile, testEventTypes+`
- event_name: orphan_event
  event_type: misc
  probability: 0.3
  weights: {lively: 1.0, calm: 1.0}
`)
	_, err := LoadTables(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fallback variants")
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("21:30")
	require.NoError(t, err)
	assert.Equal(t, 21*time.Hour+30*time.Minute, d)

	_, err = ParseClock("24:00")
	assert.Error(t, err)
	_, err = ParseClock("oops")
	assert.Error(t, err)
}
