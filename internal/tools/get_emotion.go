// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mochibot/kokoro/internal/emotion"
)

// NewGetEmotionTool creates the kokoro_get_emotion tool definition
func NewGetEmotionTool() mcp.Tool {
	return mcp.NewTool("kokoro_get_emotion",
		mcp.WithDescription("Read a companion's current emotion state: the bounded x/y coordinates, the unbounded intimacy counter and the personality role."),
		mcp.WithString("principal_id",
			mcp.Required(),
			mcp.Description("The principal whose companion to inspect"),
		),
	)
}

// GetEmotionHandler handles the kokoro_get_emotion tool
func GetEmotionHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		principalID := request.GetString("principal_id", "")
		if principalID == "" {
			return mcp.NewToolResultError("principal_id is required"), nil
		}

		profile, err := ctx.Engine.Profile(principalID)
		if err != nil {
			if errors.Is(err, emotion.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("no companion found for principal '%s'", principalID)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("failed to load emotion state: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Companion of '%s' (%s):\n- x (valence): %d\n- y (mood): %d\n- intimacy: %d\n",
			principalID, profile.Role, profile.XValue, profile.YValue, profile.Intimacy)), nil
	}
}
