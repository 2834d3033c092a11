// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"github.com/mochibot/kokoro/internal/engine"
	"github.com/mochibot/kokoro/internal/llm"
	"github.com/mochibot/kokoro/internal/quota"
	"github.com/mochibot/kokoro/internal/trigger"
)

// ToolContext holds shared dependencies for all tools
type ToolContext struct {
	Engine   *engine.Engine
	Contacts *trigger.GormContacts
	Tracker  *quota.Tracker
	LLM      *llm.Manager
}

// NewToolContext creates a new tool context
func NewToolContext(eng *engine.Engine, contacts *trigger.GormContacts, tracker *quota.Tracker, manager *llm.Manager) *ToolContext {
	return &ToolContext{
		Engine:   eng,
		Contacts: contacts,
		Tracker:  tracker,
		LLM:      manager,
	}
}
