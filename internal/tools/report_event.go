// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mochibot/kokoro/internal/event"
)

// NewReportEventTool creates the kokoro_report_event tool definition
func NewReportEventTool() mcp.Tool {
	return mcp.NewTool("kokoro_report_event",
		mcp.WithDescription("Report a life-event for a companion. The engine decides whether the event triggers a diary entry, updates the companion's emotion state, and returns the written entry if one was produced."),
		mcp.WithString("event_type",
			mcp.Required(),
			mcp.Description("Event category. Examples: 'touch', 'weather', 'dialogue', 'sync'"),
		),
		mcp.WithString("event_name",
			mcp.Required(),
			mcp.Description("Concrete event name from the event table. Examples: 'head_pat', 'rainy_day'"),
		),
		mcp.WithString("principal_id",
			mcp.Required(),
			mcp.Description("The principal (owner) the event happened to"),
		),
		mcp.WithString("label",
			mcp.Description("Interaction label for synchronization events. Two principals reporting the same label within the match window can synchronize."),
		),
		mcp.WithString("timestamp",
			mcp.Description("Event time in RFC 3339. Defaults to now."),
		),
	)
}

// ReportEventHandler handles the kokoro_report_event tool
func ReportEventHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		eventType := request.GetString("event_type", "")
		eventName := request.GetString("event_name", "")
		principalID := request.GetString("principal_id", "")
		label := request.GetString("label", "")
		timestamp := request.GetString("timestamp", "")

		ev := &event.Descriptor{
			EventType:   eventType,
			EventName:   eventName,
			PrincipalID: principalID,
		}
		if label != "" {
			ev.Payload = map[string]interface{}{event.PayloadLabelKey: label}
		}
		if timestamp != "" {
			ts, err := time.Parse(time.RFC3339, timestamp)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid timestamp: %v", err)), nil
			}
			ev.Timestamp = ts
		}

		res, err := ctx.Engine.Process(c, ev)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to process event: %v", err)), nil
		}

		if !res.Decision.Eligible {
			return mcp.NewToolResultText(fmt.Sprintf("Event '%s' recorded but no diary was written (%s).", eventName, res.Decision.Reason)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Diary entry written for '%s'.\n\n", eventName))
		sb.WriteString(fmt.Sprintf("**Title**: %s\n", res.Entry.Title))
		sb.WriteString(fmt.Sprintf("**Content**: %s\n", res.Entry.Content))
		sb.WriteString(fmt.Sprintf("**Tags**: %s\n", strings.Join(res.Entry.EmotionTags, ", ")))
		sb.WriteString(fmt.Sprintf("**Provenance**: %s\n", res.Entry.Provenance))
		if res.Decision.Sync != nil {
			sb.WriteString(fmt.Sprintf("**Synchronized with**: %s (%s)\n",
				res.Decision.Sync.PartnerPrincipal, res.Decision.Sync.Tier))
		}
		if res.Profile != nil {
			sb.WriteString(fmt.Sprintf("\nEmotion now x=%d y=%d intimacy=%d.\n",
				res.Profile.XValue, res.Profile.YValue, res.Profile.Intimacy))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
