// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Reference table filenames inside tables.dir
const (
	EventTypesFile   = "event_types.yaml"
	TriggerRulesFile = "trigger_rules.yaml"
	FallbackFile     = "fallback_templates.yaml"
	EmotionTagsFile  = "emotion_tags.yaml"
)

// Trigger rule kinds
const (
	RuleProbability = "probability"
	RuleTimeWindow  = "time_window"
	RuleClaimed     = "claimed"
)

// Synchronization quality tiers, best first. "poor" is not listed because a
// poor match is ineligible and never reaches content generation.
var SyncTiers = []string{"perfect", "excellent", "good", "acceptable"}

// YChangeRule selects the y delta by the pre-update sign of x
type YChangeRule struct {
	WhenXNegative    int `yaml:"when_x_negative"`
	WhenXNonNegative int `yaml:"when_x_nonnegative"`
}

// EventTypeConfig is one entry of the static per-event delta/weight table.
// Loaded at startup, immutable at runtime.
type EventTypeConfig struct {
	EventName       string             `yaml:"event_name"`
	EventType       string             `yaml:"event_type"`
	XChange         int                `yaml:"x_change"`
	YChange         YChangeRule        `yaml:"y_change"`
	IntimacyChange  int                `yaml:"intimacy_change"`
	Probability     float64            `yaml:"probability"`
	Weights         map[string]float64 `yaml:"weights"` // role -> multiplier, applied to x/y only
	Synchronization bool               `yaml:"synchronization,omitempty"`
}

// TriggerRule is one static eligibility rule. The enabled flag may be
// toggled at runtime; identity and kind are fixed.
type TriggerRule struct {
	ConditionID string   `yaml:"condition_id"`
	Kind        string   `yaml:"kind"` // probability, time_window, claimed
	EventTypes  []string `yaml:"event_types"`
	Probability *float64 `yaml:"probability,omitempty"`
	StartTime   string   `yaml:"start_time,omitempty"` // HH:MM, window is [start,end)
	EndTime     string   `yaml:"end_time,omitempty"`
	Enabled     bool     `yaml:"enabled"`
}

// AppliesTo reports whether the rule covers the given event type
func (r *TriggerRule) AppliesTo(eventType string) bool {
	for _, t := range r.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// TemplateVariant is one pre-authored title/content pair
type TemplateVariant struct {
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags"`
}

// FallbackTables holds the deterministic content tables used when the LLM
// path fails or is disabled.
type FallbackTables struct {
	// Events maps event name -> variants
	Events map[string][]TemplateVariant `yaml:"events"`
	// Sync maps quality tier -> participant role -> variants
	Sync map[string]map[string][]TemplateVariant `yaml:"sync"`
	// TierTags maps quality tier -> emotion tags
	TierTags map[string][]string `yaml:"tier_tags"`
}

// Tables bundles all the static reference tables the engine consumes
type Tables struct {
	EventTypes   map[string]EventTypeConfig // keyed by event name
	TriggerRules []TriggerRule
	Fallback     FallbackTables
	EmotionTags  []string
}

// EventTypeByName returns the config for an event name, or nil if unknown
func (t *Tables) EventTypeByName(name string) *EventTypeConfig {
	if cfg, ok := t.EventTypes[name]; ok {
		return &cfg
	}
	return nil
}

// IsKnownTag reports whether tag belongs to the closed enumeration
func (t *Tables) IsKnownTag(tag string) bool {
	for _, known := range t.EmotionTags {
		if known == tag {
			return true
		}
	}
	return false
}

// LoadTables reads and validates all reference tables from dir
func LoadTables(dir string) (*Tables, error) {
	var eventList []EventTypeConfig
	if err := readYAML(filepath.Join(dir, EventTypesFile), &eventList); err != nil {
		return nil, err
	}

	var rules []TriggerRule
	if err := readYAML(filepath.Join(dir, TriggerRulesFile), &rules); err != nil {
		return nil, err
	}

	var fallback FallbackTables
	if err := readYAML(filepath.Join(dir, FallbackFile), &fallback); err != nil {
		return nil, err
	}

	var tags []string
	if err := readYAML(filepath.Join(dir, EmotionTagsFile), &tags); err != nil {
		return nil, err
	}

	eventTypes := make(map[string]EventTypeConfig, len(eventList))
	for _, ec := range eventList {
		if _, dup := eventTypes[ec.EventName]; dup {
			return nil, fmt.Errorf("duplicate event name '%s' in %s", ec.EventName, EventTypesFile)
		}
		eventTypes[ec.EventName] = ec
	}

	tables := &Tables{
		EventTypes:   eventTypes,
		TriggerRules: rules,
		Fallback:     fallback,
		EmotionTags:  tags,
	}

	if err := validateTables(tables); err != nil {
		return nil, err
	}

	return tables, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ParseClock parses an HH:MM time-of-day string
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time-of-day '%s': %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func validateTables(t *Tables) error {
	if len(t.EmotionTags) == 0 {
		return fmt.Errorf("emotion tag enumeration is empty")
	}

	for name, ec := range t.EventTypes {
		if ec.EventName == "" || ec.EventType == "" {
			return fmt.Errorf("event '%s': event_name and event_type are required", name)
		}
		if ec.Probability < 0 || ec.Probability > 1 {
			return fmt.Errorf("event '%s': probability %v outside [0,1]", name, ec.Probability)
		}
		for role, w := range ec.Weights {
			if role != "lively" && role != "calm" {
				return fmt.Errorf("event '%s': unknown role '%s' in weights", name, role)
			}
			if w <= 0 {
				return fmt.Errorf("event '%s': weight for role '%s' must be > 0", name, role)
			}
		}

		// Every event needs deterministic content to fall back on.
		if ec.Synchronization {
			for _, tier := range SyncTiers {
				roles, ok := t.Fallback.Sync[tier]
				if !ok || len(roles) == 0 {
					return fmt.Errorf("sync event '%s': no fallback variants for tier '%s'", name, tier)
				}
				if len(t.Fallback.TierTags[tier]) == 0 {
					return fmt.Errorf("sync fallback: no tier_tags for tier '%s'", tier)
				}
			}
		} else if len(t.Fallback.Events[name]) == 0 {
			return fmt.Errorf("event '%s': no fallback variants", name)
		}
	}

	seen := make(map[string]bool)
	for i, r := range t.TriggerRules {
		if r.ConditionID == "" {
			return fmt.Errorf("trigger rule %d: condition_id is required", i)
		}
		if seen[r.ConditionID] {
			return fmt.Errorf("duplicate condition_id '%s'", r.ConditionID)
		}
		seen[r.ConditionID] = true

		switch r.Kind {
		case RuleProbability:
			if r.Probability == nil || *r.Probability < 0 || *r.Probability > 1 {
				return fmt.Errorf("rule '%s': probability rules need a probability in [0,1]", r.ConditionID)
			}
		case RuleTimeWindow:
			if _, err := ParseClock(r.StartTime); err != nil {
				return fmt.Errorf("rule '%s': %w", r.ConditionID, err)
			}
			if _, err := ParseClock(r.EndTime); err != nil {
				return fmt.Errorf("rule '%s': %w", r.ConditionID, err)
			}
		case RuleClaimed:
			// No parameters.
		default:
			return fmt.Errorf("rule '%s': unknown kind '%s'", r.ConditionID, r.Kind)
		}
	}

	// Fallback tables may only use tags from the enumeration.
	for name, variants := range t.Fallback.Events {
		for _, v := range variants {
			for _, tag := range v.Tags {
				if !t.IsKnownTag(tag) {
					return fmt.Errorf("fallback table '%s': unknown emotion tag '%s'", name, tag)
				}
			}
		}
	}
	for tier, tags := range t.Fallback.TierTags {
		for _, tag := range tags {
			if !t.IsKnownTag(tag) {
				return fmt.Errorf("tier_tags '%s': unknown emotion tag '%s'", tier, tag)
			}
		}
	}

	return nil
}
