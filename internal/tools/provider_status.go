// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewProviderStatusTool creates the kokoro_provider_status tool definition
func NewProviderStatusTool() mcp.Tool {
	return mcp.NewTool("kokoro_provider_status",
		mcp.WithDescription("Show the LLM provider registry in failover order: priority, enabled state, consecutive failures and last call latency. Diaries fall back to templates when every provider is down, so failures here never block diary writing."),
	)
}

// ProviderStatusHandler handles the kokoro_provider_status tool
func ProviderStatusHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats := ctx.LLM.Stats()
		if len(stats) == 0 {
			return mcp.NewToolResultText("No LLM providers configured; diaries come from templates."), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%d providers (failover order):\n\n", len(stats)))
		for i, s := range stats {
			state := "enabled"
			if !s.Enabled {
				state = "disabled"
			}
			sb.WriteString(fmt.Sprintf("%d. **%s** (priority %d, %s)\n", i+1, s.Name, s.Priority, state))
			sb.WriteString(fmt.Sprintf("   consecutive failures: %d", s.ConsecutiveFailures))
			if s.LastLatency > 0 {
				sb.WriteString(fmt.Sprintf(" | last latency: %s", s.LastLatency))
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
