// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package journal

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mochibot/kokoro/internal/diary"
	"gopkg.in/yaml.v3"
)

// frontmatter is the YAML header of an archived diary file
type frontmatter struct {
	EntryID     string    `yaml:"entry_id"`
	Principal   string    `yaml:"principal"`
	Timestamp   time.Time `yaml:"timestamp"`
	EventType   string    `yaml:"event_type"`
	EventName   string    `yaml:"event_name"`
	Title       string    `yaml:"title"`
	EmotionTags []string  `yaml:"emotion_tags"`
	Provenance  string    `yaml:"provenance"`
}

// RenderMarkdown converts a diary entry to markdown with YAML frontmatter
func RenderMarkdown(entry *diary.Entry) (string, error) {
	fm := frontmatter{
		EntryID:     entry.ID,
		Principal:   entry.PrincipalID,
		Timestamp:   entry.Timestamp,
		EventType:   entry.EventType,
		EventName:   entry.EventName,
		Title:       entry.Title,
		EmotionTags: entry.EmotionTags,
		Provenance:  entry.Provenance,
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")

	data, err := yaml.Marshal(&fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	buf.Write(data)
	buf.WriteString("---\n\n")
	buf.WriteString(entry.Content)
	buf.WriteString("\n")

	return buf.String(), nil
}

// ParseMarkdown rebuilds a diary entry from an archived file
func ParseMarkdown(content string) (*diary.Entry, error) {
	header, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	if header == "" {
		return nil, fmt.Errorf("archived entry has no frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	return &diary.Entry{
		ID:          fm.EntryID,
		PrincipalID: fm.Principal,
		Timestamp:   fm.Timestamp,
		EventType:   fm.EventType,
		EventName:   fm.EventName,
		Title:       fm.Title,
		Content:     strings.TrimSpace(body),
		EmotionTags: fm.EmotionTags,
		Provenance:  fm.Provenance,
	}, nil
}

// splitFrontmatter splits markdown content into frontmatter and body
func splitFrontmatter(content string) (string, string, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "---") {
		return "", content, nil
	}

	lines := strings.Split(content, "\n")
	if len(lines) < 3 {
		return "", content, nil
	}

	closingIndex := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closingIndex = i
			break
		}
	}
	if closingIndex < 0 {
		return "", content, nil
	}

	header := strings.Join(lines[1:closingIndex], "\n")
	body := strings.Join(lines[closingIndex+1:], "\n")
	return header, body, nil
}
