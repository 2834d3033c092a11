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
)

// NewListDiariesTool creates the kokoro_list_diaries tool definition
func NewListDiariesTool() mcp.Tool {
	return mcp.NewTool("kokoro_list_diaries",
		mcp.WithDescription("List the diary entries written on a given day, together with the day's remaining quota."),
		mcp.WithString("date",
			mcp.Description("Day to list in YYYY-MM-DD. Defaults to today."),
		),
	)
}

// ListDiariesHandler handles the kokoro_list_diaries tool
func ListDiariesHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		day := time.Now()
		if date := request.GetString("date", ""); date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid date: %v", err)), nil
			}
			day = parsed
		}

		entries, err := ctx.Engine.ListDiaries(day)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list diaries: %v", err)), nil
		}

		var sb strings.Builder
		if len(entries) == 0 {
			sb.WriteString(fmt.Sprintf("No diary entries on %s.\n", day.Format("2006-01-02")))
		} else {
			sb.WriteString(fmt.Sprintf("%d diary entries on %s:\n\n", len(entries), day.Format("2006-01-02")))
			for i, e := range entries {
				sb.WriteString(fmt.Sprintf("## %d. %s\n", i+1, e.Title))
				sb.WriteString(fmt.Sprintf("**Event**: %s (%s) | **Principal**: %s | **Provenance**: %s\n\n",
					e.EventName, e.EventType, e.PrincipalID, e.Provenance))
				sb.WriteString(e.Content)
				sb.WriteString(fmt.Sprintf("\n\n**Tags**: %s\n\n---\n\n", strings.Join(e.EmotionTags, ", ")))
			}
		}

		date, total, used, completed := ctx.Tracker.Snapshot()
		sb.WriteString(fmt.Sprintf("Quota for %s: %d/%d used", date, used, total))
		if len(completed) > 0 {
			sb.WriteString(fmt.Sprintf(" (types done: %s)", strings.Join(completed, ", ")))
		}
		sb.WriteString("\n")

		return mcp.NewToolResultText(sb.String()), nil
	}
}
