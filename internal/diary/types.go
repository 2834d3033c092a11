// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package diary

import (
	"strings"
	"time"

	"github.com/mochibot/kokoro/internal/database"
)

// Output-format invariants, counted in Unicode code points so CJK text
// fits the same budget as ASCII.
const (
	MaxTitleRunes   = 6
	MaxContentRunes = 35
)

// Provenance values
const (
	ProvenanceLLM      = "llm"      // generative model output, validated
	ProvenanceTemplate = "template" // deliberate template choice (no LLM configured)
	ProvenanceFallback = "fallback" // recovery after an LLM failure
)

// Entry is one generated diary record. Immutable once created.
type Entry struct {
	ID          string    `json:"entry_id"`
	PrincipalID string    `json:"principal_id"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	EventName   string    `json:"event_name"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	EmotionTags []string  `json:"emotion_tags"`
	Provenance  string    `json:"provenance"`
}

// ToModel converts an entry to its persistence row
func (e *Entry) ToModel() *database.DiaryEntry {
	return &database.DiaryEntry{
		EntryID:     e.ID,
		PrincipalID: e.PrincipalID,
		Timestamp:   e.Timestamp,
		EventType:   e.EventType,
		EventName:   e.EventName,
		Title:       e.Title,
		Content:     e.Content,
		EmotionTags: strings.Join(e.EmotionTags, ","),
		Provenance:  e.Provenance,
	}
}

// FromModel rebuilds an entry from its persistence row
func FromModel(m *database.DiaryEntry) *Entry {
	var tags []string
	for _, tag := range strings.Split(m.EmotionTags, ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return &Entry{
		ID:          m.EntryID,
		PrincipalID: m.PrincipalID,
		Timestamp:   m.Timestamp,
		EventType:   m.EventType,
		EventName:   m.EventName,
		Title:       m.Title,
		Content:     m.Content,
		EmotionTags: tags,
		Provenance:  m.Provenance,
	}
}
