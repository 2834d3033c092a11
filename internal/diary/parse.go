// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package diary

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mochibot/kokoro/internal/config"
)

// llmOutput is the structure the model is asked to return
type llmOutput struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	EmotionTags []string `json:"emotion_tags"`
}

// parseResponse extracts the {title, content, emotion_tags} structure from
// raw model text. Code fences and prose around the JSON object are
// tolerated; anything structurally wrong is an error and the result is
// discarded.
func parseResponse(raw string) (*llmOutput, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var out llmOutput
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("malformed response JSON: %w", err)
	}

	out.Title = strings.TrimSpace(out.Title)
	out.Content = strings.TrimSpace(out.Content)
	return &out, nil
}

// validateOutput enforces the strict output-format invariants
func validateOutput(out *llmOutput, tables *config.Tables) error {
	if out.Title == "" {
		return fmt.Errorf("empty title")
	}
	if utf8.RuneCountInString(out.Title) > MaxTitleRunes {
		return fmt.Errorf("title exceeds %d characters", MaxTitleRunes)
	}
	if out.Content == "" {
		return fmt.Errorf("empty content")
	}
	if utf8.RuneCountInString(out.Content) > MaxContentRunes {
		return fmt.Errorf("content exceeds %d characters", MaxContentRunes)
	}
	if len(out.EmotionTags) == 0 {
		return fmt.Errorf("emotion_tags is empty")
	}
	for _, tag := range out.EmotionTags {
		if !tables.IsKnownTag(tag) {
			return fmt.Errorf("unknown emotion tag '%s'", tag)
		}
	}
	return nil
}

// truncateRunes cuts a string to at most n code points
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
