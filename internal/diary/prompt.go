// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package diary

import (
	"fmt"
	"strings"

	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/event"
	"github.com/mochibot/kokoro/internal/trigger"
)

const systemPromptFormat = `You are the inner voice of a small companion pet writing one diary line about its day.
Respond with a single JSON object and nothing else:
{"title": "...", "content": "...", "emotion_tags": ["..."]}
Hard limits: title at most %d characters, content at most %d characters.
emotion_tags must be chosen from: %s.
Write in first person, present tense, with the pet's personality: %s.`

// roleVoice describes each personality for the prompt
var roleVoice = map[database.Role]string{
	database.RoleLively: "bouncy, loud, easily excited",
	database.RoleCalm:   "quiet, gentle, takes things slowly",
}

// buildPrompt assembles the system and user prompts from the event fields
// and the emotion snapshot taken after the delta was applied.
func buildPrompt(ev *event.Descriptor, profile *database.EmotionProfile, match *trigger.SyncMatch, knownTags []string) (string, string) {
	system := fmt.Sprintf(systemPromptFormat,
		MaxTitleRunes, MaxContentRunes,
		strings.Join(knownTags, ", "),
		roleVoice[profile.Role])

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s (%s) at %s.\n",
		ev.EventName, ev.EventType, ev.Timestamp.Format("15:04"))
	fmt.Fprintf(&b, "Current mood: x=%d, y=%d, intimacy=%d.\n",
		profile.XValue, profile.YValue, profile.Intimacy)

	if match != nil {
		fmt.Fprintf(&b, "We did %q at the same time as a friend (%s sync, %.1fs apart).\n",
			match.Label, match.Tier, match.Elapsed.Seconds())
	}

	for k, v := range ev.Payload {
		if k == event.PayloadLabelKey {
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}

	b.WriteString("Write the diary entry now.")
	return system, b.String()
}
