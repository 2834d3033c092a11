// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package diary

import (
	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/trigger"
)

// pickFallback selects deterministic content for an event. The variant
// pick is random (content need not repeat across calls); the constraints
// hold by construction, with rune truncation as the last-resort net.
func (p *Pipeline) pickFallback(eventName string, profile *database.EmotionProfile, match *trigger.SyncMatch) (string, string, []string) {
	var (
		variant config.TemplateVariant
		tags    []string
	)

	if match != nil {
		variant = p.pickSyncVariant(match.Tier, profile.Role)
		tags = p.tables.Fallback.TierTags[match.Tier]
	} else {
		variants := p.tables.Fallback.Events[eventName]
		if len(variants) > 0 {
			variant = variants[p.pick(len(variants))]
		}
		tags = variant.Tags
	}

	title := truncateRunes(variant.Title, MaxTitleRunes)
	content := truncateRunes(variant.Content, MaxContentRunes)

	if title == "" {
		title = truncateRunes(eventName, MaxTitleRunes)
	}
	if content == "" {
		content = truncateRunes(eventName, MaxContentRunes)
	}
	if len(tags) == 0 {
		// emotion_tags must never be empty; table validation makes this
		// unreachable for configured events.
		tags = p.tables.EmotionTags[:1]
	}

	return title, content, tags
}

// pickSyncVariant selects among the tier's variants for the given role,
// borrowing the other role's table if the tier has no entry for this one.
func (p *Pipeline) pickSyncVariant(tier string, role database.Role) config.TemplateVariant {
	byRole := p.tables.Fallback.Sync[tier]
	variants := byRole[string(role)]
	if len(variants) == 0 {
		for _, other := range byRole {
			if len(other) > 0 {
				variants = other
				break
			}
		}
	}
	if len(variants) == 0 {
		return config.TemplateVariant{}
	}
	return variants[p.pick(len(variants))]
}

// pick draws a random index under the pipeline's rand lock
func (p *Pipeline) pick(n int) int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Intn(n)
}
